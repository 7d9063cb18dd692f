package model

type NodeKind int

const (
	KindDir NodeKind = iota
	KindFile
	KindZipEntry
)

func (k NodeKind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindZipEntry:
		return "zip-entry"
	default:
		return "unknown"
	}
}

type FileType string

const (
	TypeModel   FileType = "Model"
	TypeImage   FileType = "Image"
	TypeAudio   FileType = "Audio"
	TypeVideo   FileType = "Video"
	TypeArchive FileType = "Archive"
	TypeBundle  FileType = "Bundle"
	TypeOther   FileType = "Other"
)

// AssetNode is one entry in the unified asset namespace. Paths are
// slash-separated and relative to the project root; entries inside a zip
// archive extend the archive's own path.
type AssetNode struct {
	Path       string   `json:"path"`
	Name       string   `json:"name"`
	Kind       NodeKind `json:"kind"`
	IsArchive  bool     `json:"isArchive,omitempty"`
	BundlePath string   `json:"bundlePath,omitempty"`
	FileType   FileType `json:"fileType"`
	Size       int64    `json:"size"`
	Inode      uint64   `json:"inode,omitempty"`
	ModTime    int64    `json:"mtime"`
	// NonEmpty is only populated for directories in one-level traversal.
	NonEmpty bool `json:"nonEmpty,omitempty"`
}

// Embedding records a generated vector together with the model that
// produced it and a hash of the text it was produced from.
type Embedding struct {
	Model       string    `json:"model"`
	ContentHash string    `json:"contentHash"`
	Vector      []float32 `json:"vector"`
}

// SidecarMeta is the JSON document stored beside an asset. Plain files use
// tags/description/embedding; bundle markers additionally carry name,
// source URL and license.
type SidecarMeta struct {
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	License     string     `json:"license,omitempty"`
	Embedding   *Embedding `json:"embedding,omitempty"`
}

// BundleInfo exposes on-disk and virtual bundles through one shape so
// callers never branch on the storage medium. ID is the bundle path for
// on-disk bundles and a generated identifier for virtual ones.
type BundleInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	License     string   `json:"license,omitempty"`
	IsVirtual   bool     `json:"isVirtual"`
	IsArchive   bool     `json:"isArchive,omitempty"`
}
