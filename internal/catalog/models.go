package catalog

import "time"

// AssetKind separates the two catalogs sharing one row shape.
type AssetKind string

const (
	KindDocument AssetKind = "document"
	KindModel    AssetKind = "model"
)

// VolumeType identifies how a volume's files are reached.
type VolumeType string

const (
	VolumeLocal VolumeType = "local"
	VolumeSFTP  VolumeType = "sftp"
)

// VolumeStatus is the reachability state of a volume.
type VolumeStatus string

const (
	VolumeOnline  VolumeStatus = "online"
	VolumeOffline VolumeStatus = "offline"
	VolumeError   VolumeStatus = "error"
)

// IndexStatus is the catalog's view of whether an asset still exists on disk.
type IndexStatus string

const (
	StatusIndexed IndexStatus = "indexed"
	StatusMissing IndexStatus = "missing"
	StatusError   IndexStatus = "error"
)

// DuplicatePolicy controls how a content match at a new path is handled.
type DuplicatePolicy string

const (
	PolicyReject DuplicatePolicy = "reject"
	PolicyWarn   DuplicatePolicy = "warn"
	// PolicyMerge is the default: a relocated file repoints its existing row
	// instead of multiplying catalog entries.
	PolicyMerge DuplicatePolicy = "merge"
)

// ValidPolicy reports whether p is one of the three known policies.
func ValidPolicy(p DuplicatePolicy) bool {
	switch p {
	case PolicyReject, PolicyWarn, PolicyMerge:
		return true
	}
	return false
}

// Volume is a registered root storage location containing assets.
type Volume struct {
	ID            int64        `json:"id"`
	Label         string       `json:"label"`
	Type          VolumeType   `json:"type"`
	MountPath     string       `json:"mountPath"`
	ReadOnly      bool         `json:"readOnly"`
	Disabled      bool         `json:"disabled"`
	Status        VolumeStatus `json:"status"`
	LastIndexedAt *time.Time   `json:"lastIndexedAt,omitempty"`
}

// Asset is one catalog row for a document or model file.
//
// RelativePath is always computed against the volume mount root. For archive
// members it is synthesized as ArchivePath + "::" + ArchiveMember.
type Asset struct {
	ID            int64     `json:"id"`
	VolumeID      int64     `json:"volumeId"`
	Kind          AssetKind `json:"kind"`
	RelativePath  string    `json:"relativePath"`
	Filename      string    `json:"filename"`
	FolderPath    string    `json:"folderPath"`
	Format        string    `json:"format"`
	FileSize      int64     `json:"fileSize"`
	FileMtime     time.Time `json:"fileMtime"`
	PartialHash   string    `json:"-"`
	FullHash      string    `json:"-"`
	ArchivePath   string    `json:"archivePath,omitempty"`
	ArchiveMember string    `json:"archiveMember,omitempty"`

	IndexStatus  IndexStatus `json:"indexStatus"`
	LastSeenAt   time.Time   `json:"lastSeenAt"`
	MissingSince *time.Time  `json:"missingSince,omitempty"`

	ThumbStorage     string     `json:"thumbStorage,omitempty"`
	ThumbPath        string     `json:"thumbPath,omitempty"`
	ThumbRenderedAt  *time.Time `json:"thumbRenderedAt,omitempty"`
	ThumbSourceMtime *time.Time `json:"thumbSourceMtime,omitempty"`
	ForceRerender    bool       `json:"-"`

	IsDuplicate   bool   `json:"isDuplicate"`
	DuplicateOfID *int64 `json:"duplicateOfId,omitempty"`
}

// IsArchiveMember reports whether the asset lives inside a container archive.
func (a *Asset) IsArchiveMember() bool {
	return a.ArchiveMember != ""
}

// ThumbnailStale reports whether the asset needs a (re-)render against the
// given source mtime.
func (a *Asset) ThumbnailStale() bool {
	if a.ForceRerender {
		return true
	}
	if a.ThumbRenderedAt == nil || a.ThumbSourceMtime == nil {
		return true
	}
	return a.ThumbSourceMtime.Unix() != a.FileMtime.Unix()
}

// ScanJob states.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// ScanJob phases.
const (
	PhaseEnumerating = "enumerating"
	PhaseApplying    = "applying"
	PhaseDone        = "done"
)

// ScanJob is one row per scan invocation, used for progress reporting and
// crash diagnosis.
type ScanJob struct {
	ID              string     `json:"id"`
	VolumeID        int64      `json:"volumeId"`
	JobType         string     `json:"jobType"`
	TargetPath      string     `json:"targetPath"`
	Status          string     `json:"status"`
	Phase           string     `json:"phase"`
	ProgressCurrent int64      `json:"progressCurrent"`
	ProgressTotal   int64      `json:"progressTotal"`
	ItemsProcessed  int64      `json:"itemsProcessed"`
	ItemsSkipped    int64      `json:"itemsSkipped"`
	ItemsFailed     int64      `json:"itemsFailed"`
	ItemsMissing    int64      `json:"itemsMissing"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// JobError is one row per file-level failure; a job error never aborts the
// scan it belongs to.
type JobError struct {
	JobID        string    `json:"jobId"`
	FilePath     string    `json:"filePath"`
	ErrorType    string    `json:"errorType"`
	ErrorMessage string    `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SearchHit is one full-text search result.
type SearchHit struct {
	AssetID      int64     `json:"assetId"`
	VolumeID     int64     `json:"volumeId"`
	Kind         AssetKind `json:"kind"`
	RelativePath string    `json:"relativePath"`
	Filename     string    `json:"filename"`
}

// Stats summarizes catalog contents for the metrics collector.
type Stats struct {
	TotalAssets    int64
	TotalDocuments int64
	TotalModels    int64
	TotalMissing   int64
	TotalDuplicate int64
	RenderedThumbs int64
}
