package types

import "time"

// RecordID is a dense index into the run's record arena. IDs are assigned
// once at ingestion and stay stable for the process lifetime.
type RecordID int

// ExifMeta holds the subset of EXIF metadata used as duplicate evidence.
// Fields may be individually absent; an absent field is never compared.
type ExifMeta struct {
	CaptureTime *time.Time `json:"capture_time,omitempty"`
	CameraMake  string     `json:"camera_make,omitempty"`
	CameraModel string     `json:"camera_model,omitempty"`
	Orientation int        `json:"orientation,omitempty"`
}

// Empty reports whether no EXIF field was recovered at all.
func (m ExifMeta) Empty() bool {
	return m.CaptureTime == nil && m.CameraMake == "" && m.CameraModel == "" && m.Orientation == 0
}

// ImageRecord is the fingerprint of one successfully decoded file.
type ImageRecord struct {
	ID             RecordID  `json:"id"`
	Path           string    `json:"path"`
	ByteSize       int64     `json:"byte_size"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Format         string    `json:"format"`
	ExactHash      string    `json:"exact_hash"`
	PerceptualHash uint64    `json:"perceptual_hash"`
	Exif           ExifMeta  `json:"exif"`
	ModTime        time.Time `json:"mod_time"`
	// NameTokens are the normalized filename-stem tokens. They are a hint
	// signal only and never produce an edge on their own.
	NameTokens []string `json:"name_tokens,omitempty"`
}

// PixelArea returns width*height, the primary canonical-selection key.
func (r ImageRecord) PixelArea() int64 {
	return int64(r.Width) * int64(r.Height)
}

// Method identifies the detection signal that produced a similarity edge.
// The set is closed so the evidence-combination rules stay exhaustive.
type Method string

const (
	MethodExact      Method = "exact"
	MethodPerceptual Method = "perceptual"
	MethodExifTime   Method = "exif-time"
	MethodExifCamera Method = "exif-camera"
	MethodFilename   Method = "filename"
)

// SimilarityEdge is one weighted, undirected evidence edge between two
// records. A and B are ordered A < B so the (pair, method) key is unique.
type SimilarityEdge struct {
	A        RecordID `json:"a"`
	B        RecordID `json:"b"`
	Method   Method   `json:"method"`
	Distance int      `json:"distance"`
	Weight   float64  `json:"weight"`
}

// Cluster is one duplicate-equivalence class. Clusters partition the record
// set; singletons are valid. Immutable once built.
type Cluster struct {
	ID         int        `json:"cluster_id"`
	Members    []RecordID `json:"member_ids"`
	Canonical  RecordID   `json:"canonical_id"`
	Confidence float64    `json:"confidence"`
	// Signals lists the distinct methods that contributed evidence inside
	// the cluster, including weak edges that never triggered a merge.
	Signals []Method `json:"signals,omitempty"`
}

// Disposition is what the plan proposes for one non-canonical member.
type Disposition string

const (
	DispositionKeep         Disposition = "keep"
	DispositionMoveToReview Disposition = "move-to-review"
	DispositionDelete       Disposition = "delete"
	DispositionLink         Disposition = "link"
)

// Action is one planned, never-executed-in-process step.
type Action struct {
	Target      RecordID    `json:"target_id"`
	Path        string      `json:"path"`
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason"`
	ClusterID   int         `json:"cluster_id"`
}
