package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineKV       = "kv"
	EnginePostgres = "postgres"
)

// File storage backends
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

type (
	Config struct {
		Env              string `mapstructure:"env"`
		Build            string `mapstructure:"build"`
		Debug            bool   `mapstructure:"debug"`
		TestMode         bool   `mapstructure:"testmode"`
		AppName          string `mapstructure:"appname"`
		SecretKey        string `mapstructure:"secretkey"`
		FrontendBaseURL  string `mapstructure:"frontendbaseurl"`
		DefaultFromEmail string `mapstructure:"defaultfromemail"`
		LogLevel         string `mapstructure:"loglevel"`
		RollbarToken     string `mapstructure:"rollbartoken"`
		SendgridApiKey   string `mapstructure:"sendgridapikey"`

		PasswordResetTimeoutDelta time.Duration `mapstructure:"passwordresettimeoutdelta"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Progress ProgressConfig `mapstructure:"progress"`
		Storage  StorageConfig  `mapstructure:"storage"`
		Nats     NatsConfig     `mapstructure:"nats"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Address                   string        `mapstructure:"address"`
		DebugAddress              string        `mapstructure:"debugaddress"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdowntimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtexpirationdelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtrefreshexpirationdelta"`
		LoginRatePerMinute        float64       `mapstructure:"loginrateperminute"`
		LoginBurst                int           `mapstructure:"loginburst"`
	}

	DatabaseConfig struct {
		Engine string `mapstructure:"engine"` // kv | postgres

		// kv
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"inmemory"`

		// postgres
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminuser"`
		AdminPassword string `mapstructure:"adminpassword"`
		DisableTLS    bool   `mapstructure:"disabletls"`
	}

	ProgressConfig struct {
		Tolerance           time.Duration `mapstructure:"tolerance"`
		Slack               time.Duration `mapstructure:"slack"`
		MaxSpeed            float64       `mapstructure:"maxspeed"` // negative disables the wall-clock cap
		CompletionThreshold int           `mapstructure:"completionthreshold"`
		PersistInterval     time.Duration `mapstructure:"persistinterval"`
		SessionTTL          time.Duration `mapstructure:"sessionttl"`
	}

	StorageConfig struct {
		Backend string `mapstructure:"backend"` // local | gcs
		Dir     string `mapstructure:"dir"`
		Bucket  string `mapstructure:"bucket"`
	}

	NatsConfig struct {
		URL string `mapstructure:"url"`
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFrom() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "ClassHub")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "ClassHub <noreply@localhost>")
	v.SetDefault("logLevel", "info")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.loginRatePerMinute", 20.0)
	v.SetDefault("server.loginBurst", 5)

	v.SetDefault("database.engine", EngineKV)
	v.SetDefault("database.path", filepath.Join("data", "lms"))
	v.SetDefault("database.inMemory", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "classhub")
	v.SetDefault("database.user", "classhub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("progress.tolerance", 3*time.Second)
	v.SetDefault("progress.slack", 1*time.Second)
	v.SetDefault("progress.maxSpeed", 2.0)
	v.SetDefault("progress.completionThreshold", 95)
	v.SetDefault("progress.persistInterval", 5*time.Second)
	v.SetDefault("progress.sessionTTL", 30*time.Minute)

	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.dir", filepath.Join("data", "files"))
	v.SetDefault("storage.bucket", "")

	v.SetDefault("nats.url", "")
}

// NewConfig loads the configuration for the current ENV (DEV by default; TEST, QA, PROD).
// Values come from defaults, then from config/.env.<env> if it exists, then from the environment.
// Environment keys are prefixed with the ENV: DEV_SERVER_ADDRESS, PROD_DATABASE_ENGINE...
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.inMemory", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return conf, nil
}

// NewTestConfig returns the configuration used by tests: in-memory store, fast cadences.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)

	conf := new(Config)
	_ = v.Unmarshal(conf)
	conf.Env = "TEST"
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Database.InMemory = true
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	return conf
}
