// Package registry is the durable session registry: for every
// (base directory, host type) key, the set of chroot session process IDs
// started against it and not yet reaped by a shutdown.
//
// The registry is a bbolt file. Every invocation opens it, performs one
// operation and closes it again; no handle is kept for the lifetime of a
// chroot session. bbolt's file lock serializes concurrent invocations for
// the duration of one open/close span.
//
// Layout:
//
//	meta/
//	    schema_version -> "1"
//	sessions/
//	    <base dir>/            (canonical absolute path)
//	        <host type>/       ("debian", "freebsd")
//	            <pid> -> Session JSON   (pid as 8-byte big-endian)
//
// Because base directories are bucket names rather than fields of a
// delimited line, no character is reserved.
package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chrootctl/host"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
const (
	BucketSessions = "sessions"
	BucketMeta     = "meta"
)

// SchemaVersion is written to the meta bucket on creation.
const SchemaVersion = "1"

// Key identifies one mount domain.
type Key struct {
	BaseDir  string
	HostType host.Type
}

func (k Key) String() string {
	return fmt.Sprintf("%s [%s]", k.BaseDir, k.HostType)
}

// Session is one registered chroot session.
type Session struct {
	PID     int       `json:"pid"`
	ID      string    `json:"id"`
	Shell   string    `json:"shell,omitempty"`
	Started time.Time `json:"started"`
}

// Entry is one key with its sessions, as returned by Enumerate.
type Entry struct {
	Key      Key
	Sessions []Session
}

// PIDs returns the process IDs of e's sessions.
func (e Entry) PIDs() []int {
	pids := make([]int, len(e.Sessions))
	for i, s := range e.Sessions {
		pids[i] = s.PID
	}
	return pids
}

// Options tune Open.
type Options struct {
	// Timeout bounds the wait for the file lock. Zero waits forever.
	Timeout time.Duration

	// ReadOnly opens an existing file with a shared lock and skips
	// bucket initialization.
	ReadOnly bool
}

// Registry is an open registry file.
type Registry struct {
	db   *bolt.DB
	path string
}

// Exists reports whether a registry file exists at path.
// A directory at path is a ValidationError.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &DatabaseError{Op: "stat", Err: err}
	}
	if info.IsDir() {
		return false, &ValidationError{Field: "registry_path", Value: path, Err: ErrIsDirectory}
	}
	return true, nil
}

// Open opens or creates the registry file at path (mode 0600) and
// initializes its buckets.
//
// Example:
//
//	reg, err := registry.Open(cfg.RegistryPath, registry.Options{Timeout: cfg.LockTimeout})
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
func Open(path string, opts Options) (*Registry, error) {
	if _, err := Exists(path); err != nil {
		return nil, err
	}

	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	if !opts.ReadOnly {
		err = bdb.Update(func(tx *bolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(BucketSessions)); err != nil {
				return &DatabaseError{Op: "create bucket", Bucket: BucketSessions, Err: err}
			}
			meta, err := tx.CreateBucketIfNotExists([]byte(BucketMeta))
			if err != nil {
				return &DatabaseError{Op: "create bucket", Bucket: BucketMeta, Err: err}
			}
			if meta.Get([]byte("schema_version")) == nil {
				return meta.Put([]byte("schema_version"), []byte(SchemaVersion))
			}
			return nil
		})
		if err != nil {
			bdb.Close()
			return nil, err
		}
	}

	return &Registry{db: bdb, path: path}, nil
}

// Close releases the file lock. Safe to call more than once.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// Lookup returns the sessions registered for k, ordered by PID.
// An absent key yields an empty slice and no error.
func (r *Registry) Lookup(k Key) ([]Session, error) {
	if err := checkBaseDir(k.BaseDir); err != nil {
		return nil, err
	}

	sessions := []Session{}
	err := r.db.View(func(tx *bolt.Tx) error {
		b := hostBucket(tx, k)
		if b == nil {
			return nil
		}
		var err error
		sessions, err = readSessions(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Add records s under k, creating the nested buckets as needed.
// Adding a PID that is already present replaces its record.
func (r *Registry) Add(k Key, s Session) error {
	if err := ValidateKey(k); err != nil {
		return err
	}
	if s.PID <= 0 {
		return &ValidationError{Field: "pid", Value: fmt.Sprint(s.PID), Err: ErrInvalidPID}
	}

	data, err := json.Marshal(&s)
	if err != nil {
		return &DatabaseError{Op: "marshal", Err: err}
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(BucketSessions))
		if root == nil {
			return &DatabaseError{Op: "get bucket", Bucket: BucketSessions, Err: ErrBucketNotFound}
		}
		base, err := root.CreateBucketIfNotExists([]byte(k.BaseDir))
		if err != nil {
			return &DatabaseError{Op: "create bucket", Bucket: k.BaseDir, Err: err}
		}
		hb, err := base.CreateBucketIfNotExists([]byte(k.HostType))
		if err != nil {
			return &DatabaseError{Op: "create bucket", Bucket: string(k.HostType), Err: err}
		}
		return hb.Put(pidKey(s.PID), data)
	})
}

// Enumerate returns a snapshot of every key and its sessions, ordered by
// base directory and host type.
//
// Host types are returned as stored, without validation, so that a
// shutdown can still clear a bucket written by a different release.
func (r *Registry) Enumerate() ([]Entry, error) {
	var entries []Entry
	err := r.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(BucketSessions))
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(baseName []byte) error {
			base := root.Bucket(baseName)
			return base.ForEachBucket(func(hostName []byte) error {
				sessions, err := readSessions(base.Bucket(hostName))
				if err != nil {
					return err
				}
				entries = append(entries, Entry{
					Key:      Key{BaseDir: string(baseName), HostType: host.Type(hostName)},
					Sessions: sessions,
				})
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RemoveHostType deletes the bucket of k, and the base directory bucket
// once no host type remains under it. Removing an absent key is not an
// error.
func (r *Registry) RemoveHostType(k Key) error {
	if err := checkBaseDir(k.BaseDir); err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(BucketSessions))
		if root == nil {
			return nil
		}
		base := root.Bucket([]byte(k.BaseDir))
		if base == nil {
			return nil
		}
		if base.Bucket([]byte(k.HostType)) != nil {
			if err := base.DeleteBucket([]byte(k.HostType)); err != nil {
				return &DatabaseError{Op: "delete bucket", Bucket: string(k.HostType), Err: err}
			}
		}
		if isEmpty(base) {
			if err := root.DeleteBucket([]byte(k.BaseDir)); err != nil {
				return &DatabaseError{Op: "delete bucket", Bucket: k.BaseDir, Err: err}
			}
		}
		return nil
	})
}

func hostBucket(tx *bolt.Tx, k Key) *bolt.Bucket {
	root := tx.Bucket([]byte(BucketSessions))
	if root == nil {
		return nil
	}
	base := root.Bucket([]byte(k.BaseDir))
	if base == nil {
		return nil
	}
	return base.Bucket([]byte(k.HostType))
}

// readSessions decodes every session in b. A record whose JSON cannot be
// decoded still yields its PID, which is all a shutdown needs.
func readSessions(b *bolt.Bucket) ([]Session, error) {
	sessions := []Session{}
	err := b.ForEach(func(k, v []byte) error {
		if v == nil || len(k) != 8 {
			return nil
		}
		pid := int(binary.BigEndian.Uint64(k))
		var s Session
		if err := json.Unmarshal(v, &s); err != nil {
			s = Session{}
		}
		s.PID = pid
		sessions = append(sessions, s)
		return nil
	})
	return sessions, err
}

func isEmpty(b *bolt.Bucket) bool {
	k, _ := b.Cursor().First()
	return k == nil
}

func pidKey(pid int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(pid))
	return key
}
