package ydb

import (
	"context"
	"io"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru"
	"github.com/oklog/ulid/v2"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/ipc"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// DB is a data block: a tree, its hooks and its connections.
type DB struct {
	cfg     *Config
	log     *slog.Logger
	tree    *ir.Tree
	origin  string
	protect []ypath.Path
	cache   *lru.Cache
	hooks   []*HookHandle
	hub     *ipc.Hub
	pending map[*ipc.Conn]int

	readHooks  []*ReadHookHandle
	inReadHook bool
	// owners maps nodes to the connection they came from; nil is local.
	owners map[ir.ID]*ipc.Conn
}

type Option func(*DB)

func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.log = l }
}

// WithConfig replaces the configuration; options after it adjust the copy.
func WithConfig(c *Config) Option {
	return func(db *DB) {
		cp := *c
		db.cfg = &cp
	}
}

func WithStrictTypes(v bool) Option {
	return func(db *DB) { db.cfg.StrictTypes = v }
}

// WithDeleteProtect adds path patterns which Remove and PathRemove refuse
// to delete, along with their ancestors.
func WithDeleteProtect(patterns ...string) Option {
	return func(db *DB) {
		db.cfg.DeleteProtect = append(db.cfg.DeleteProtect, patterns...)
	}
}

func WithCacheSize(n int) Option {
	return func(db *DB) { db.cfg.CacheSize = n }
}

// WithOrigin sets the identifier stamped on the deltas of this DB. It
// defaults to a fresh ULID.
func WithOrigin(origin string) Option {
	return func(db *DB) { db.origin = origin }
}

// New returns an empty DB without connections.
func New(opts ...Option) (*DB, error) {
	db := &DB{cfg: DefaultConfig(), pending: map[*ipc.Conn]int{}, owners: map[ir.ID]*ipc.Conn{}}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.cfg.Validate(); err != nil {
		return nil, result.Wrap(result.InvalidArgs, err)
	}
	if db.log == nil {
		db.log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slogLevel(),
		}))
	}
	if db.origin == "" {
		db.origin = ulid.Make().String()
	}
	db.log = db.log.With("db", db.cfg.Name)
	for _, p := range db.cfg.DeleteProtect {
		db.protect = append(db.protect, ypath.MustParse(p))
	}
	if db.cfg.CacheSize > 0 {
		c, err := lru.New(db.cfg.CacheSize)
		if err != nil {
			return nil, result.Wrap(result.InvalidArgs, err)
		}
		db.cache = c
	}
	hub, err := ipc.NewHub(db.cfg.hubConfig(), (*peer)(db), db.log)
	if err != nil {
		return nil, err
	}
	db.hub = hub
	db.tree = ir.New()
	return db, nil
}

// Open returns a DB configured by cfg with its configured connections
// opened. The logger comes from cfg.Log unless an option sets one.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, result.Wrap(result.InvalidArgs, err)
	}
	opts = append([]Option{WithConfig(cfg), WithLogger(cfg.Log.NewLogger())}, opts...)
	db, err := New(opts...)
	if err != nil {
		return nil, err
	}
	for _, cc := range cfg.Connections {
		if _, err := db.Connect(ctx, cc.Address, cc.Flags); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Close disconnects every peer.
func (db *DB) Close() error {
	return db.hub.Close()
}

func (db *DB) Config() Config    { return *db.cfg }
func (db *DB) Origin() string    { return db.origin }
func (db *DB) Log() *slog.Logger { return db.log }

// Tree exposes the tree for reading. Mutating it directly bypasses hooks
// and peers.
func (db *DB) Tree() *ir.Tree { return db.tree }

// Get returns the whole tree as block YAML.
func (db *DB) Get() (string, error) {
	werr := result.Join(db.syncBeforeRead("/"), db.beforeRead("/"))
	s, err := encode.String(db.tree, db.tree.Top())
	if err != nil {
		return "", err
	}
	return s, werr
}

// PathGet returns the value of the scalar at path, or the block YAML of the
// container at path.
func (db *DB) PathGet(path string) (string, error) {
	werr := result.Join(db.syncBeforeRead(path), db.beforeRead(path))
	id, err := db.Search(path)
	if err != nil {
		return "", err
	}
	if db.tree.Type(id) == ir.ScalarType {
		return db.tree.Value(id), werr
	}
	s, err := encode.String(db.tree, id)
	if err != nil {
		return "", err
	}
	return s, werr
}

// Dump writes the subtree at path to w.
func (db *DB) Dump(w io.Writer, path string, opts ...encode.EncodeOption) error {
	werr := db.beforeRead(path)
	id, err := db.Search(path)
	if err != nil {
		return err
	}
	return result.Join(encode.Encode(db.tree, id, w, opts...), werr)
}
