// conf/consts.go hard coded constants
package conf

const (
	SampleRate    = 48000 // Sample rate of the audio fed to BirdNET Analyzer
	BitDepth      = 16    // Bit depth of captured and exported audio
	NumChannels   = 1     // Number of channels of captured and exported audio
	CaptureLength = 3     // Length of audio data fed to the model in seconds

	// NameFormatTimestamped names clips <YYYY-MM-DD_HH-MM-SS>_<Species>_<confidence>.wav
	NameFormatTimestamped = "timestamped"
	// NameFormatSpecies names clips <species>_<YYYYMMDD-HHMMSS>.wav
	NameFormatSpecies = "species"

	// HourKeyLayout formats the calendar hour key, YYYYMMDDHH.
	HourKeyLayout = "2006010215"
)
