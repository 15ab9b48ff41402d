package config

import "github.com/spf13/pflag"

// RegisterFlags defines the override flags on fs. Defaults shown in help
// come from Default(); only flags the user set are applied.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "YAML config file")
	fs.StringP("env", "e", ".env", "Env file path")
	fs.StringP("log", "l", d.Log, "Log level (debug|info|warn|error)")
	fs.StringP("proxy", "p", "", "SOCKS5 proxy for cloud LLM providers")
	fs.String("socket", d.Socket, "Control socket path")
	fs.Int("threshold", d.Engine.Threshold, "Proximity trigger threshold")
	fs.String("keyword", d.Engine.Keyword, "Confirmation keyword")
	fs.Duration("listen-timeout", d.Engine.ListenTimeout, "Voice confirmation window")
	fs.Duration("generate-timeout", d.Engine.GenerateTimeout, "Language model call limit")
	fs.Duration("tick", d.Runner.Tick, "Engine tick interval")
	fs.String("provider", d.LLM.Provider, "LLM provider (ollama|openai|anthropic|gemini|mock)")
	fs.String("model", "", "Model for the selected provider")
	fs.String("sensor", d.Sensor.Kind, "Proximity sensor (vcnl4040|virtual)")
	fs.String("voice", d.Voice.Mode, "Voice confirmation mode (mic|clips)")
	fs.String("clips", "", "Directory of answer clips for clips mode")
	fs.String("speech", d.Speech.Engine, "Speech output (espeak|silent)")
	fs.String("display-url", "", "Websocket hub of the display shard")
	fs.Bool("no-store", false, "Do not persist the day's word")
}

// ApplyFlags copies every flag that was set on the command line into cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Changed(name) {
			apply()
		}
	}
	str := func(name string) string {
		var v string
		v, err = fs.GetString(name)
		return v
	}

	set("log", func() { cfg.Log = str("log") })
	set("proxy", func() { cfg.Proxy = str("proxy") })
	set("socket", func() { cfg.Socket = str("socket") })
	set("threshold", func() { cfg.Engine.Threshold, err = fs.GetInt("threshold") })
	set("keyword", func() { cfg.Engine.Keyword = str("keyword") })
	set("listen-timeout", func() { cfg.Engine.ListenTimeout, err = fs.GetDuration("listen-timeout") })
	set("generate-timeout", func() { cfg.Engine.GenerateTimeout, err = fs.GetDuration("generate-timeout") })
	set("tick", func() { cfg.Runner.Tick, err = fs.GetDuration("tick") })
	set("provider", func() { cfg.LLM.Provider = str("provider") })
	set("model", func() { SetModel(&cfg.LLM, str("model")) })
	set("sensor", func() { cfg.Sensor.Kind = str("sensor") })
	set("voice", func() { cfg.Voice.Mode = str("voice") })
	set("clips", func() {
		cfg.Voice.ClipDir = str("clips")
		cfg.Voice.Mode = "clips"
	})
	set("speech", func() { cfg.Speech.Engine = str("speech") })
	set("display-url", func() { cfg.Display.BusURL = str("display-url") })
	set("no-store", func() {
		var off bool
		off, err = fs.GetBool("no-store")
		cfg.Store.Enabled = !off
	})
	return err
}
