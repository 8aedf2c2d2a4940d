package actors

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/spf13/viper"
)

var DefaultReadRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.primal.net",
	"wss://purplepag.es",
	"wss://relay.nostr.band",
}

var DefaultWriteRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.primal.net",
	"wss://purplepag.es",
}

// InitConfig sets up our Viper config object. rootDir may be set before calling.
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", filepath.Join(homeDir, "nostrweb")+string(filepath.Separator))
	config.SetConfigType("yaml")
	config.SetConfigFile(configFile(config))
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("logLevel", 4)
	config.SetDefault("relays.read", DefaultReadRelays)
	config.SetDefault("relays.write", DefaultWriteRelays)
	config.SetDefault("relayTimeout", 6*time.Second)
	config.SetDefault("session.backend", "memory")
	config.SetDefault("session.ttl", 12*time.Hour)
	config.SetDefault("redis.address", "127.0.0.1:6379")
	config.SetDefault("redis.password", "")
	config.SetDefault("redis.db", 0)
	config.SetDefault("redis.keyPrefix", "nostrweb:")
	config.SetDefault("signer.mode", "auto")
	config.SetDefault("signer.appName", "nostrweb")
	config.SetDefault("web.listen", "127.0.0.1:1031")
	config.SetDefault("web.publicURL", "http://127.0.0.1:1031")
	config.SetDefault("directory.npubs", []string{})
	// Create our working directory and config file if not exist
	initRootDir(config)
	touch(configFile(config))
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 1)
	}
}

func configFile(config *viper.Viper) string {
	return filepath.Join(config.GetString("rootDir"), "config.yaml")
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 1)
		}
	}
}

func touch(name string) {
	f, err := os.OpenFile(name, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		library.LogCLI(err, 1)
		return
	}
	_ = f.Close()
}

// Settings is the typed view of the config that constructors take.
type Settings struct {
	ReadRelays   []library.RelayURL
	WriteRelays  []library.RelayURL
	RelayTimeout time.Duration

	SessionBackend string
	SessionTTL     time.Duration
	RedisAddress   string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	SignerMode    string
	SignerAppName string

	Listen    string
	PublicURL string
	Directory []string

	LogLevel int
}

func LoadSettings(config *viper.Viper) Settings {
	return Settings{
		ReadRelays:     config.GetStringSlice("relays.read"),
		WriteRelays:    config.GetStringSlice("relays.write"),
		RelayTimeout:   config.GetDuration("relayTimeout"),
		SessionBackend: config.GetString("session.backend"),
		SessionTTL:     config.GetDuration("session.ttl"),
		RedisAddress:   config.GetString("redis.address"),
		RedisPassword:  config.GetString("redis.password"),
		RedisDB:        config.GetInt("redis.db"),
		RedisKeyPrefix: config.GetString("redis.keyPrefix"),
		SignerMode:     config.GetString("signer.mode"),
		SignerAppName:  config.GetString("signer.appName"),
		Listen:         config.GetString("web.listen"),
		PublicURL:      config.GetString("web.publicURL"),
		Directory:      config.GetStringSlice("directory.npubs"),
		LogLevel:       config.GetInt("logLevel"),
	}
}
