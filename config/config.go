package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"golang.org/x/xerrors"
)

type Config struct {
	Db   DbConf `toml:"Database"`
	Game GameConf
}

type LogConf struct {
	// stdout をローカル開発用のフォーマットにする
	LogStdoutConsole bool `toml:"log_stdout_console"`
	// stdout のログレベル設定
	LogStdoutLevel uint32 `toml:"log_stdout_level"`

	// ローテーション設定
	// https://github.com/natefinch/lumberjack#type-logger
	LogPath       string `toml:"log_path"`
	LogMaxSize    int    `toml:"log_max_size"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAge     int    `toml:"log_max_age"`
	LogCompress   bool   `toml:"log_compress"`
}

type DbConf struct {
	Host     string
	Port     int
	DBName   string
	AuthFile string
	User     string
	Password string
}

type GameConf struct {
	// Hostname : 外部からのアクセス名. see Load()
	Hostname string
	// PublicName : クライアントからのアクセス名. see Load()
	PublicName string `toml:"public_name"`

	Port      int `toml:"port"`
	PprofPort int `toml:"pprof_port"`

	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`

	// RetryCount : ルームコード生成の最大試行回数
	RetryCount int `toml:"retry_count"`

	// DefaultMaxPlayers : アダプタ未登録のゲームの最大人数
	DefaultMaxPlayers int `toml:"default_max_players"`

	// SweepInterval : 放置ルーム回収の実行間隔
	SweepInterval Duration `toml:"sweep_interval"`
	// InactiveDeadline : この期間更新のないルームを回収する
	InactiveDeadline Duration `toml:"inactive_deadline"`

	DefaultLoglevel uint32 `toml:"default_loglevel"`

	LogConf
}

type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	td, err := time.ParseDuration(string(text))
	*d = Duration(td)
	return err
}

// Load : tomlファイルから読み込む
//
// 次の環境変数はtomlより優先される.
// - ARCADE_HOSTNAME:   Config.Game.Hostname
// - ARCADE_PUBLICNAME: Config.Game.PublicName
// - ARCADE_PORT:       Config.Game.Port
func Load(conffile string) (*Config, error) {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	c := &Config{
		// set default values before decode file.
		Game: GameConf{
			Hostname:   hostname,
			PublicName: hostname,

			Port: 8080,

			RetryCount: 5,

			DefaultMaxPlayers: 4,

			SweepInterval:    Duration(5 * time.Minute),
			InactiveDeadline: Duration(30 * time.Minute),

			DefaultLoglevel: 2,

			LogConf: LogConf{
				LogStdoutLevel: 4,
				LogPath:        "/var/log/arcade/arcade-game.log",
				LogMaxSize:     500,
				LogMaxBackups:  0,
				LogMaxAge:      0,
				LogCompress:    false,
			},
		},
	}

	confBytes, err := os.ReadFile(conffile)
	if err != nil {
		return nil, err
	}

	err = toml.Unmarshal(confBytes, c)
	if err != nil {
		return nil, err
	}

	err = c.Db.loadAuthfile(conffile)
	if err != nil {
		return nil, err
	}

	c.applyEnvVar()

	return c, nil
}

func (db *DbConf) loadAuthfile(conffile string) error {
	if db.AuthFile == "" {
		return nil
	}
	authfile := db.AuthFile
	if authfile[0] != '/' {
		authfile = path.Join(path.Dir(conffile), authfile)
	}
	content, err := os.ReadFile(authfile)
	if err != nil {
		return err
	}
	ss := strings.SplitN(strings.TrimSpace(string(content)), ":", 2)
	if len(ss) != 2 {
		return xerrors.Errorf("Db authfile format error: %q", string(content))
	}

	db.User = ss[0]
	db.Password = ss[1]
	return nil
}

func (db *DbConf) DSN() string {
	user := db.User
	if db.Password != "" {
		user = fmt.Sprintf("%s:%s", db.User, db.Password)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, db.Host, db.Port, db.DBName)
}

// applyEnvVar : 環境変数で上書きする
func (c *Config) applyEnvVar() {
	if v := os.Getenv("ARCADE_HOSTNAME"); v != "" {
		c.Game.Hostname = v
	}
	if v := os.Getenv("ARCADE_PUBLICNAME"); v != "" {
		c.Game.PublicName = v
	}
	if v, err := strconv.Atoi(os.Getenv("ARCADE_PORT")); err == nil {
		c.Game.Port = v
	}
}
