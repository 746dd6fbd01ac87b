package conf

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeyAnnotation marks a command line flag with the settings key it overrides.
const flagKeyAnnotation = "birdnet-listener/settings-key"

// BindFlag records that the flag name overrides the settings key. The
// binding is applied by BindFlags once the command to run is known, so
// several commands may offer a flag for the same key.
func BindFlag(fs *pflag.FlagSet, name, key string) {
	// SetAnnotation only fails for unknown flags, which is a programming error.
	if err := fs.SetAnnotation(name, flagKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("conf: bind flag %q: %v", name, err))
	}
}

// BindFlags binds every annotated flag in fs to viper. Call it before Load.
func BindFlags(fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[flagKeyAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		if err := viper.BindPFlag(keys[0], f); err != nil {
			bindErr = fmt.Errorf("error binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}
