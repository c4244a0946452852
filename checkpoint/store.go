package checkpoint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// IndexName is the name of the index file in a Store's
// directory.
// Each line of the index names a checkpoint file, and the
// last line names the most recent one.
const IndexName = "checkpoint.txt"

// A Store saves and loads checkpoints in a directory.
type Store struct {
	Dir string

	// writeFile is used for every write.
	// It can be replaced to simulate failures.
	writeFile func(f *os.File, data []byte) error
}

// NewStore creates a Store for a directory, creating the
// directory if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, essentials.AddCtx("create checkpoint store", err)
	}
	return &Store{Dir: dir}, nil
}

// FileName returns the name of the checkpoint file for a
// stage.
func FileName(stage int) string {
	return fmt.Sprintf("checkpoint_%d.ckpt", stage)
}

// Save writes a record and then appends it to the index.
// It returns the path of the checkpoint file.
//
// Both files are replaced atomically, so a failed Save
// leaves the previous checkpoint and index in place.
func (s *Store) Save(r *Record) (string, error) {
	data, err := serializer.SerializeAny(r)
	if err != nil {
		return "", essentials.AddCtx("save checkpoint", err)
	}
	name := FileName(r.Stage)
	path := filepath.Join(s.Dir, name)
	if err := s.writeAtomic(path, data); err != nil {
		return "", essentials.AddCtx("save checkpoint", err)
	}

	names, err := s.index()
	if err != nil && !errors.Is(err, singan.ErrCheckpointNotFound) {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	var kept []string
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	kept = append(kept, name)
	var buf bytes.Buffer
	for _, n := range kept {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	if err := s.writeAtomic(filepath.Join(s.Dir, IndexName), buf.Bytes()); err != nil {
		return "", essentials.AddCtx("save checkpoint", err)
	}
	return path, nil
}

// Load reads a checkpoint file.
func (s *Store) Load(path string) (*Record, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load checkpoint: %w: %s", singan.ErrCheckpointNotFound, path)
		}
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	var r *Record
	if err := serializer.DeserializeAny(data, &r); err != nil {
		if errors.Is(err, singan.ErrCheckpointCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("load checkpoint: %w: %s: %v", singan.ErrCheckpointCorrupt,
			path, err)
	}
	return r, nil
}

// Latest returns the path of the most recent checkpoint
// named by the index.
func (s *Store) Latest() (string, error) {
	names, err := s.index()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: empty index in %s", singan.ErrCheckpointNotFound, s.Dir)
	}
	return filepath.Join(s.Dir, names[len(names)-1]), nil
}

// LoadLatest loads the most recent checkpoint.
func (s *Store) LoadLatest() (*Record, error) {
	path, err := s.Latest()
	if err != nil {
		return nil, err
	}
	return s.Load(path)
}

func (s *Store) index() ([]string, error) {
	f, err := os.Open(filepath.Join(s.Dir, IndexName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no index in %s", singan.ErrCheckpointNotFound, s.Dir)
		}
		return nil, essentials.AddCtx("read checkpoint index", err)
	}
	defer f.Close()
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("read checkpoint index", err)
	}
	return names, nil
}

func (s *Store) writeAtomic(path string, data []byte) (err error) {
	f, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	write := s.writeFile
	if write == nil {
		write = writeAndSync
	}
	if err := write(f, data); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
