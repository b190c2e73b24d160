package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"Jaffre/internal/game/engine"
	"Jaffre/internal/game/table"
)

type Config struct {
	Server struct {
		Port       string
		AdminToken string
		LogLevel   string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Store struct {
		Driver string // memory | redis | postgres
		TTL    time.Duration
	}
	Game struct {
		WinningScore            int
		InitialDealer           int
		TurnTimeout             time.Duration
		DisconnectedTurnTimeout time.Duration
		GraceTimeout            time.Duration
		RoundReviewDelay        time.Duration
		BotTimeout              time.Duration
		BeginnerMode            bool
		ConvertToBotAfterGrace  bool
		DealerMaySkip           bool
		WithoutTrumpBreaksTies  bool
		AckRounds               bool
	}
	Bot struct {
		Kind   string // basic | random | lua
		Script string
		Seed   int64
	}
	Matchmaker struct {
		Driver    string // memory | redis
		PlayerTTL time.Duration
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	// 没有默认值的 key 也要登记，否则 Unmarshal 看不到对应的环境变量
	for _, k := range []string{"server.admintoken", "database.dsn", "redis.password", "jwt.secret", "bot.script"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("bot.seed", 0)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.loglevel", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.ttl", 24*time.Hour)

	d := engine.DefaultConfig()
	r := table.DefaultRules()
	v.SetDefault("game.winningscore", r.WinningScore)
	v.SetDefault("game.initialdealer", r.InitialDealer)
	v.SetDefault("game.turntimeout", d.TurnTimeout)
	v.SetDefault("game.disconnectedturntimeout", d.DisconnectedTurnTimeout)
	v.SetDefault("game.gracetimeout", d.GraceTimeout)
	v.SetDefault("game.roundreviewdelay", d.RoundReviewDelay)
	v.SetDefault("game.bottimeout", d.BotTimeout)
	v.SetDefault("game.beginnermode", d.BeginnerMode)
	v.SetDefault("game.converttobotaftergrace", r.ConvertToBotAfterGrace)
	v.SetDefault("game.dealermayskip", r.DealerMaySkip)
	v.SetDefault("game.withouttrumpbreaksties", r.WithoutTrumpBreaksTies)
	v.SetDefault("game.ackrounds", r.AckRounds)

	v.SetDefault("bot.kind", "basic")
	v.SetDefault("matchmaker.driver", "memory")
	v.SetDefault("matchmaker.playerttl", 5*time.Minute)
}

// Load 读取 yaml（path 为空或文件不存在时只用默认值），环境变量 JAFFRE_* 覆盖，例如 JAFFRE_JWT_SECRET
func Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("jaffre")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return err
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required (JAFFRE_JWT_SECRET)")
	}
	C = c
	return nil
}

// EngineConfig 定时器相关配置
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		TurnTimeout:             c.Game.TurnTimeout,
		DisconnectedTurnTimeout: c.Game.DisconnectedTurnTimeout,
		GraceTimeout:            c.Game.GraceTimeout,
		RoundReviewDelay:        c.Game.RoundReviewDelay,
		BeginnerMode:            c.Game.BeginnerMode,
		BotTimeout:              c.Game.BotTimeout,
	}
}

// Rules 新建对局的默认规则
func (c Config) Rules() table.Rules {
	return table.Rules{
		WinningScore:           c.Game.WinningScore,
		InitialDealer:          c.Game.InitialDealer,
		DealerMaySkip:          c.Game.DealerMaySkip,
		WithoutTrumpBreaksTies: c.Game.WithoutTrumpBreaksTies,
		ConvertToBotAfterGrace: c.Game.ConvertToBotAfterGrace,
		AckRounds:              c.Game.AckRounds,
	}
}
