package speech

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atomchat/atom/backend/internal/model/speech"
)

// ErrArtifactMissing 表示音频文件已不在临时目录中
var ErrArtifactMissing = errors.New("audio artifact missing")

// ArtifactStore 将合成音频写入临时目录，每次合成得到一个唯一文件
type ArtifactStore struct {
	dir string
}

// NewArtifactStore 创建存储，dir 为空时使用系统临时目录
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare artifact dir %s: %w", dir, err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Dir 返回存储目录
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Save 写入音频并返回新文件的描述
func (s *ArtifactStore) Save(audio []byte, format string) (*speech.Artifact, error) {
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		format = "mp3"
	}

	file, err := os.CreateTemp(s.dir, "atom-*."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio artifact: %w", err)
	}

	if _, err := file.Write(audio); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to write audio artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to close audio artifact: %w", err)
	}

	name := filepath.Base(file.Name())
	return &speech.Artifact{
		ID:        strings.TrimSuffix(name, filepath.Ext(name)),
		Path:      file.Name(),
		Format:    format,
		Size:      int64(len(audio)),
		CreatedAt: time.Now(),
	}, nil
}

// Read 读取音频内容，文件被外部删除时返回 ErrArtifactMissing
func (s *ArtifactStore) Read(artifact *speech.Artifact) ([]byte, error) {
	if artifact == nil {
		return nil, ErrArtifactMissing
	}
	data, err := os.ReadFile(artifact.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, artifact.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio artifact %s: %w", artifact.ID, err)
	}
	return data, nil
}

// Remove 删除音频文件，文件不存在视为成功
func (s *ArtifactStore) Remove(artifact *speech.Artifact) error {
	if artifact == nil {
		return nil
	}
	if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove audio artifact %s: %w", artifact.ID, err)
	}
	return nil
}
