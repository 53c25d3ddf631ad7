package models

type Config struct {
	Backend      string        `yaml:"backend"` // "snowflake" or "sqlite"
	Snowflake    Snowflake     `yaml:"snowflake"`
	SQLite       SQLite        `yaml:"sqlite"`
	Sources      []Source      `yaml:"sources"`
	Scheduler    Scheduler     `yaml:"scheduler"`
	Server       Server        `yaml:"server"`
	Environments []Environment `yaml:"environments"`
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

// Source describes one ingestion source: a named source type, the stage
// location holding its staged CSV file, and the landing table it loads.
type Source struct {
	Name        string `yaml:"name"`
	StagePath   string `yaml:"stage_path"`
	TargetTable string `yaml:"target_table"`
}

type Scheduler struct {
	Stages []Stage `yaml:"stages"`
}

// Stage is one scheduled pipeline stage. A stage only fires when its cron
// schedule is due and every stage listed in After has a terminal SUCCESS as
// its most recent run.
type Stage struct {
	Name     string   `yaml:"name"`
	Schedule string   `yaml:"schedule"`
	After    []string `yaml:"after"`
	Enabled  bool     `yaml:"enabled"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Environment struct {
	Name      string `yaml:"name"`
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
}
