package config

import (
	"encoding/json"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	ConfigPath = "./config/"
	ConfigFile = ConfigPath + "config.json"
	TokensFile = ConfigPath + "tokens.json"
	LogPath    = "./logs/"
	SqliteFile = "./lender.db"
	ServiceLog = "lender"
	NetworkLog = "network"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

type Node struct {
	Rpc    string `json:"rpc"`
	Ws     string `json:"ws"`
	Usable bool   `json:"usable"`
}

type DB struct {
	Driver string `json:"driver"`
	Url    string `json:"url"`
	Scheme string `json:"scheme"`
	User   string `json:"user"`
	Passwd string `json:"passwd"`
}

type Config struct {
	Nodes          []*Node          `json:"nodes"`
	DetectNodes    bool             `json:"detect_nodes"`
	LendingProgram solana.PublicKey `json:"lending_program"`
	SerumProgram   solana.PublicKey `json:"serum_program"`
	User           solana.PublicKey `json:"user"`
	Key            string           `json:"key"`
	HostFee        solana.PublicKey `json:"host_fee"`
	LendingMarket  solana.PublicKey `json:"lending_market"`
	DingUrl        string           `json:"ding-url"`
	DB             DB               `json:"db"`
	Listen         string           `json:"listen"`
	MaxConnections int              `json:"max_connections"`
	TokensFile     string           `json:"tokens_file"`
	LogPath        string           `json:"log_path"`
	LogLevel       string           `json:"log_level"`
}

// Load reads a JSON config and fills the defaults the service relies on.
func Load(file string) (*Config, error) {
	infoJson, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", file)
	}
	var cfg Config
	if err := json.Unmarshal(infoJson, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", file)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.defaults()
	return &cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.UsableNodes()) == 0 {
		return errors.New("config: there is no usable node")
	}
	if cfg.LendingProgram.IsZero() {
		return errors.New("config: lending_program is required")
	}
	switch cfg.DB.Driver {
	case "", DriverMysql, DriverSqlite:
	default:
		return errors.Errorf("config: unsupported db driver %q", cfg.DB.Driver)
	}
	return nil
}

func (cfg *Config) defaults() {
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:8089"
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 256
	}
	if cfg.TokensFile == "" {
		cfg.TokensFile = TokensFile
	}
	if cfg.LogPath == "" {
		cfg.LogPath = LogPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverSqlite
	}
	if cfg.DB.Driver == DriverSqlite && cfg.DB.Url == "" {
		cfg.DB.Url = SqliteFile
	}
}

func (cfg *Config) UsableNodes() []*Node {
	nodes := make([]*Node, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node.Usable {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
