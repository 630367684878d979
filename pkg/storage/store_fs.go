package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"s7link/pkg/utils/fileutil"
)

const (
	_retryInterval = 10 * time.Millisecond
	_retryTimeout  = time.Second
)

// FsClient keeps one file per key in a directory.
type FsClient struct {
	storePath string
}

var _ Storage = (*FsClient)(nil)

func NewFsClient(dir string) (*FsClient, error) {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) {
		absPath, _ := filepath.Abs(dir)
		klog.V(2).InfoS("Created", "path", absPath)
		err = os.MkdirAll(dir, 0711)
	}
	if err != nil {
		return nil, err
	}
	return &FsClient{storePath: dir}, nil
}

func (fc *FsClient) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", errors.Errorf("invalid key %q", key)
	}
	return filepath.Join(fc.storePath, key), nil
}

func (fc *FsClient) Get(key string) ([]byte, error) {
	p, err := fc.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		klog.V(2).InfoS("Failed to read", "err", err)
		return nil, err
	}
	return data, nil
}

// List returns the keys in lexical order.
func (fc *FsClient) List() ([]string, error) {
	entries, err := os.ReadDir(fc.storePath)
	if err != nil {
		klog.V(2).InfoS("Failed to list", "err", err)
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Put replaces the content of key under an exclusive file lock.
func (fc *FsClient) Put(key string, data []byte) error {
	p, err := fc.path(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		if isEphemeralError(err) {
			klog.V(2).InfoS("Failed to open file", "err", err)
			return ErrWriteConflict
		}
		return err
	}
	defer f.Close()

	lock, err := fileutil.NewLock(f)
	if err != nil {
		klog.V(2).InfoS("Failed to lock", "err", err)
		return ErrWriteConflict
	}
	defer lock.Release()

	if err = f.Truncate(0); err != nil {
		klog.V(2).InfoS("Failed to truncate", "err", err)
		return err
	}
	if _, err = f.WriteAt(data, 0); err != nil {
		klog.V(2).InfoS("Failed to write", "err", err)
		return err
	}
	return nil
}

// Delete retries while another process holds the file. A missing key is
// not an error.
func (fc *FsClient) Delete(key string) error {
	p, err := fc.path(key)
	if err != nil {
		return err
	}
	return wait.PollUntilContextTimeout(context.Background(), _retryInterval, _retryTimeout, true, func(context.Context) (bool, error) {
		err := os.Remove(p)
		switch {
		case err == nil, os.IsNotExist(err):
			return true, nil
		case isEphemeralError(err):
			klog.V(5).InfoS("Failed to remove file", "err", err)
			return false, nil
		}
		return false, err
	})
}
