package vipstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tg-group-guard/internal/domain"
)

// ErrMalformed возвращается, если содержимое хранилища не является списком идентификаторов.
var ErrMalformed = errors.New("vip store: malformed content")

// File хранит VIP как JSON-массив строк и перезаписывает файл целиком при каждом сохранении.
type File struct {
	path string
	mu   sync.Mutex
}

var _ domain.VipStore = (*File)(nil)

// NewFile создаёт файловое хранилище.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path возвращает путь к файлу.
func (f *File) Path() string {
	return f.path
}

// Load читает файл. Отсутствующий файл даёт ошибку, совместимую с fs.ErrNotExist.
func (f *File) Load(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", f.path, err)
	}
	return decodeIDs(data)
}

// Save атомарно заменяет файл: пишет во временный файл рядом и переименовывает.
func (f *File) Save(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ids: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	return nil
}

// decodeIDs принимает массив строк или чисел.
func decodeIDs(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected array", ErrMalformed)
	}
	ids := make([]string, 0, len(raw))
	for i, v := range raw {
		switch val := v.(type) {
		case string:
			ids = append(ids, val)
		case json.Number:
			ids = append(ids, val.String())
		default:
			return nil, fmt.Errorf("%w: element %d has type %T", ErrMalformed, i, v)
		}
	}
	return ids, nil
}
