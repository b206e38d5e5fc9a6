package userconfig

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/storage"
)

// Backends
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Storage modes
const (
	ModeSimple     = "simple"
	ModeInsertOnly = "insert-only"
	ModeRoundRobin = "round-robin"
)

const (
	defaultHost       = "localhost"
	defaultChildrenDB = 15
)

// Meta represents every config option of a storage, i.e., after parsing.
// Call CheckAndSetDefaults before using it.
type Meta struct {
	Backend string
	Mode    string
	// Hand values back as raw bytes rather than text
	BufferMode bool
	// Default endpoint, used by treeDb, childrenDb and bare pool entries
	Host string
	Port int
	// Database of the simple and insert-only modes
	TreeDB *int
	// Shards of the round-robin mode, in rotation order
	TreeDBPool       []PoolEntry
	ChildrenDB       *int
	ChildrenRegistry bool
	DefaultTTL       time.Duration
	DayScale         float64
	BaseTimestamp    time.Time
	BaseKeysOnly     bool
	Badger           Badger
}

// rawMeta mirrors Meta for the fields YAML can decode directly.
type rawMeta struct {
	Backend          string      `yaml:"backend"`
	Mode             string      `yaml:"mode"`
	BufferMode       bool        `yaml:"bufferMode"`
	Host             string      `yaml:"host"`
	Port             int         `yaml:"port"`
	TreeDB           *int        `yaml:"treeDb"`
	TreeDBPool       []PoolEntry `yaml:"treeDbPool"`
	ChildrenDB       *int        `yaml:"childrenDb"`
	ChildrenRegistry bool        `yaml:"childrenRegistry"`
	DefaultTTL       string      `yaml:"defaultTtl"`
	DayScale         float64     `yaml:"dayScale"`
	BaseTimestamp    string      `yaml:"baseTimestamp"`
	BaseKeysOnly     bool        `yaml:"baseKeysOnly"`
	Badger           Badger      `yaml:"badger"`
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (m *Meta) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var r rawMeta
	if err := unmarshal(&r); err != nil {
		return fmt.Errorf("can't parse the user config: %v", err)
	}

	ttl, err := parseTTL(r.DefaultTTL)
	if err != nil {
		return fmt.Errorf("can't parse the default TTL: %v", err)
	}

	ts, err := parseTimestamp(r.BaseTimestamp)
	if err != nil {
		return fmt.Errorf("can't parse the base timestamp: %v", err)
	}

	*m = Meta{
		Backend:          r.Backend,
		Mode:             r.Mode,
		BufferMode:       r.BufferMode,
		Host:             r.Host,
		Port:             r.Port,
		TreeDB:           r.TreeDB,
		TreeDBPool:       r.TreeDBPool,
		ChildrenDB:       r.ChildrenDB,
		ChildrenRegistry: r.ChildrenRegistry,
		DefaultTTL:       ttl,
		DayScale:         r.DayScale,
		BaseTimestamp:    ts,
		BaseKeysOnly:     r.BaseKeysOnly,
		Badger:           r.Badger,
	}
	return nil
}

// parseTTL accepts a Go duration or a bare number of seconds.
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseTimestamp accepts RFC 3339 or milliseconds since the Unix epoch.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, s)
}

// PoolEntry is one item of treeDbPool: either a bare database number on the
// default endpoint or a group of databases on another endpoint.
type PoolEntry struct {
	Host string
	Port int
	DBs  []int
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (p *PoolEntry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var db int
	if err := unmarshal(&db); err == nil {
		*p = PoolEntry{DBs: []int{db}}
		return nil
	}

	var group struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		DBs  []int  `yaml:"dbs"`
	}
	if err := unmarshal(&group); err != nil {
		return fmt.Errorf("a pool entry must be a database number or a {host, port, dbs} object: %v", err)
	}
	if len(group.DBs) == 0 {
		return fmt.Errorf("the pool entry for %q lists no databases", group.Host)
	}
	*p = PoolEntry{Host: group.Host, Port: group.Port, DBs: group.DBs}
	return nil
}

// Badger contains the settings of the embedded backend.
type Badger struct {
	Dir      string
	InMemory bool
	// Maximum size of each value log file, in bytes. Zero keeps Badger's
	// default.
	ValueLogFileSize int64
}

// UnmarshalYAML parses the badger section, where sizes are written with
// base 2 units, e.g., "64MiB".
func (b *Badger) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the badger config: %v", err)
	}

	b.Dir = v["dir"]

	if im, ok := v["inMemory"]; ok {
		parsed, err := strconv.ParseBool(im)
		if err != nil {
			return fmt.Errorf("can't parse inMemory as a boolean: %v", err)
		}
		b.InMemory = parsed
	}

	if s, ok := v["valueLogFileSize"]; ok {
		size, err := units.ParseBase2Bytes(s)
		if err != nil {
			return fmt.Errorf("can't parse the value log file size: %v", err)
		}
		b.ValueLogFileSize = int64(size)
	}

	return nil
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := *m

	switch c.Backend {
	case "":
		c.Backend = BackendRedis
	case BackendRedis:
	case BackendBadger:
		if c.Badger.Dir == "" && !c.Badger.InMemory {
			return Meta{}, invalid("the badger backend needs a dir unless it's in memory")
		}
	default:
		return Meta{}, invalid("unknown backend %q", c.Backend)
	}

	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = backend.DefaultPort
	}
	if c.ChildrenDB == nil {
		d := defaultChildrenDB
		c.ChildrenDB = &d
	}
	if c.DefaultTTL < 0 {
		return Meta{}, invalid("the default TTL can't be negative")
	}
	if c.DayScale < 0 {
		return Meta{}, invalid("the day scale can't be negative")
	}
	if c.DayScale == 0 {
		c.DayScale = 1
	}

	switch c.Mode {
	case "":
		c.Mode = ModeSimple
		fallthrough
	case ModeSimple, ModeInsertOnly:
		if len(c.TreeDBPool) > 0 {
			return Meta{}, invalid("treeDbPool can't be used with the %s mode", c.Mode)
		}
		if c.TreeDB == nil {
			return Meta{}, invalid("the %s mode needs a treeDb", c.Mode)
		}
	case ModeRoundRobin:
		if len(c.TreeDBPool) == 0 {
			if c.TreeDB == nil {
				return Meta{}, invalid("the round-robin mode needs a treeDbPool")
			}
			log.Debug().Int("treeDb", *c.TreeDB).Msg("no treeDbPool, using treeDb as a single shard")
			c.TreeDBPool = []PoolEntry{{DBs: []int{*c.TreeDB}}}
		}
	default:
		return Meta{}, invalid("unknown mode %q", c.Mode)
	}

	pool := make([]PoolEntry, len(c.TreeDBPool))
	for i, e := range c.TreeDBPool {
		if e.Host == "" {
			e.Host = c.Host
		}
		if e.Port == 0 {
			e.Port = c.Port
		}
		pool[i] = e
	}
	c.TreeDBPool = pool

	return c, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", storage.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Endpoints flattens the pool into backend endpoint groups.
func (m *Meta) Endpoints() []backend.Endpoint {
	eps := make([]backend.Endpoint, len(m.TreeDBPool))
	for i, e := range m.TreeDBPool {
		eps[i] = backend.Endpoint{Host: e.Host, Port: e.Port, DBs: e.DBs}
	}
	return eps
}

// Parse reads a YAML configuration. An error indicates a problem with
// parsing; validation is left to CheckAndSetDefaults.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}
	m.Mode = strings.ToLower(m.Mode)
	m.Backend = strings.ToLower(m.Backend)
	return &m, nil
}
