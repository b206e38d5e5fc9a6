package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/codibre/tree-key-cache-storage/storage"
	"github.com/codibre/tree-key-cache-storage/userconfig"
)

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	Redis       *miniredis.Miniredis
	tempDirPath string
}

// startTestEnvironment starts an in-process Redis server and creates a
// scratch directory for Badger. Both are removed when the test ends.
func startTestEnvironment(t *testing.T) *testEnvironment {
	return &testEnvironment{
		Redis:       miniredis.RunT(t),
		tempDirPath: t.TempDir(),
	}
}

// configFor fills in the endpoint of the environment for opts, writes the
// config file and returns its path.
func (te *testEnvironment) configFor(opts appConfigOptions) (string, error) {
	port, err := strconv.Atoi(te.Redis.Port())
	if err != nil {
		return "", fmt.Errorf("can't read the port of the test server: %v", err)
	}
	opts.Host = te.Redis.Host()
	opts.Port = port
	if opts.Backend == userconfig.BackendBadger && opts.StorageDir == "" {
		opts.StorageDir = filepath.Join(te.tempDirPath, "badger")
	}

	path := filepath.Join(te.tempDirPath, opts.Backend+"-"+opts.Mode+".yaml")
	if err := createAppConfig(path, opts); err != nil {
		return "", err
	}
	return path, nil
}

// open builds a storage from the config file at path, the same way the CLI
// does.
func open[V storage.Value](path string) (*userconfig.Handle[V], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := userconfig.Parse(f)
	if err != nil {
		return nil, err
	}
	return userconfig.Build[V](m)
}
