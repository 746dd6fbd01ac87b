// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultHumanLabels are the human vocalization labels of the BirdNET label set.
var DefaultHumanLabels = []string{
	"Human vocal",
	"Human non-vocal",
	"Human whistle",
}

// DefaultExclude lists non-bird labels and labels the model is known to
// produce for local noise at the reference site.
var DefaultExclude = []string{
	"Dog",
	"Engine",
	"Gray Wolf",
	"Trompetzwaan",
	"Viskraai",
	"Waaierhoen",
	"Prairiehoen",
	"Elzenfeetiran",
	"Amerikaanse Nachtzwaluw",
	"Cederpestvogel",
	"Casarca",
	"Cassins Vireo",
	"Blonde Ruiter",
	"Kleine Torenvalk",
	"Gevlekte Diamantvogel",
	"Geelstuitdoornsnavel",
	"Gestreepte Bosuil",
	"Hoatzin",
	"Kleine Kauailijster",
	"Oeraluil",
	"Roodkapzanger",
	"Pinyongaai",
	"Rosse Bladspeurder",
	"Oehoe",
	"Amerikaanse Oehoe",
	"Ponderosadwergooruil",
	"Rotsduif",
}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "birdnet-listener")
	viper.SetDefault("main.latitude", 0.0)
	viper.SetDefault("main.longitude", 0.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console", true)
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/birdnet-listener.log")
	viper.SetDefault("logging.file.level", "")

	viper.SetDefault("audio.source", "sysdefault")
	viper.SetDefault("audio.windowseconds", 30)
	viper.SetDefault("audio.queuesize", 4)
	viper.SetDefault("audio.recording.enabled", true)
	viper.SetDefault("audio.recording.path", "recordings")
	viper.SetDefault("audio.snippets.enabled", true)
	viper.SetDefault("audio.snippets.path", "detections")
	viper.SetDefault("audio.snippets.nameformat", NameFormatTimestamped)

	viper.SetDefault("birdnet.modelpath", "model/BirdNET_GLOBAL_6K_V2.4_Model_FP32.tflite")
	viper.SetDefault("birdnet.labelpath", "model/labels_nl.txt")
	viper.SetDefault("birdnet.threads", 0)
	viper.SetDefault("birdnet.sensitivity", 1.0)
	viper.SetDefault("birdnet.overlap", 0.0)
	viper.SetDefault("birdnet.minconfidence", 0.1)
	viper.SetDefault("birdnet.maxresults", 10)

	viper.SetDefault("filter.threshold", 0.5)
	viper.SetDefault("filter.humanlabels", DefaultHumanLabels)
	viper.SetDefault("filter.exclude", DefaultExclude)
	viper.SetDefault("filter.dashboardthreshold", 0.75)

	viper.SetDefault("output.csv.path", "data/output.csv")
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "data/detections.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.dsn", "")

	viper.SetDefault("autocommit.enabled", false)
	viper.SetDefault("autocommit.minute", 1)
	viper.SetDefault("autocommit.pollinterval", time.Second)
	viper.SetDefault("autocommit.repodir", "")
	viper.SetDefault("autocommit.gitbinary", "git")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":5000")
	viper.SetDefault("webserver.refreshseconds", 60)
	viper.SetDefault("webserver.recent", 20)
	viper.SetDefault("webserver.topspecies", 10)
	viper.SetDefault("webserver.heatmapdays", 7)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "birdnet-listener/detections")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.timeout", 10*time.Second)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
	viper.SetDefault("telemetry.sentry.environment", "production")
	viper.SetDefault("telemetry.sentry.samplerate", 1.0)
}
