package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"asset-catalog/internal/archive"
	"asset-catalog/internal/catalog"
	"asset-catalog/internal/formats"
	"asset-catalog/internal/hashing"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"
	"asset-catalog/internal/volume"
	"asset-catalog/internal/workers"
)

// cancelCheckEvery bounds how often the apply loop polls the job row for an
// operator cancel request.
const cancelCheckEvery = 64

// Request describes one scan invocation.
type Request struct {
	Volume *catalog.Volume
	Source volume.Source
	// Path is a volume-relative subfolder to scan, empty for the whole
	// volume. Relative paths in the catalog are always computed against
	// the mount root, so a subfolder scan produces the same rows a full
	// scan would.
	Path      string
	Recursive bool
	// Force bypasses the unchanged short-circuit and recomputes hashes
	// even when size and mtime match, repairing a previously bad index.
	Force  bool
	Policy catalog.DuplicatePolicy
	// OnStart, when set, receives the job id as soon as the job row
	// exists, so async callers can poll progress while the scan runs.
	OnStart func(jobID string)
}

// Result counts what one scan did.
type Result struct {
	JobID      string `json:"jobId"`
	New        int64  `json:"new"`
	Updated    int64  `json:"update"`
	Moved      int64  `json:"moved"`
	Duplicates int64  `json:"duplicate"`
	Unchanged  int64  `json:"unchanged"`
	Skipped    int64  `json:"skip"`
	Missing    int64  `json:"missing"`
	Errors     int64  `json:"errors"`
	Total      int64  `json:"total"`
}

// Scanner indexes volumes into the catalog.
type Scanner struct {
	cat         *catalog.Catalog
	hashWorkers int
}

func New(cat *catalog.Catalog) *Scanner {
	return &Scanner{
		cat:         cat,
		hashWorkers: workers.ForIO("SCAN_HASH_WORKERS", 8),
	}
}

// fileEntry is one discovered file, carried through the three scan phases
// in traversal order.
type fileEntry struct {
	absPath   string
	relPath   string
	size      int64
	mtime     time.Time
	format    *formats.Format
	isArchive bool
	existing  *catalog.Asset
	needHash  bool
	partial   string
	hashErr   error
}

// Scan runs enumerate, hash, and apply phases over the requested tree, then
// reconciles missing rows. File-level failures are recorded against the job
// and never abort the scan. Returns the per-action counts together with the
// job id for progress queries.
func (s *Scanner) Scan(ctx context.Context, req *Request) (*Result, error) {
	policy := req.Policy
	if policy == "" {
		policy = catalog.PolicyMerge
	}
	if !catalog.ValidPolicy(policy) {
		return nil, fmt.Errorf("invalid duplicate policy %q", req.Policy)
	}

	scanRoot := req.Volume.MountPath
	if req.Path != "" {
		abs, err := volume.Absolute(req.Volume, req.Path)
		if err != nil {
			return nil, err
		}
		scanRoot = abs
	}

	job, err := s.cat.CreateScanJob(req.Volume.ID, "scan", req.Path)
	if err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}
	res := &Result{JobID: job.ID}
	if req.OnStart != nil {
		req.OnStart(job.ID)
	}

	metrics.ScansTotal.Inc()
	metrics.ScansRunning.Inc()
	defer metrics.ScansRunning.Dec()
	started := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(started).Seconds()) }()

	if _, err := req.Source.Stat(scanRoot); err != nil {
		logging.Error("Scan %s: volume %q unreachable at %s: %v", job.ID, req.Volume.Label, scanRoot, err)
		s.cat.SetVolumeStatus(req.Volume.ID, catalog.VolumeOffline)
		s.cat.FinishScanJob(job, catalog.JobFailed)
		return nil, fmt.Errorf("volume %q unreachable: %w", req.Volume.Label, err)
	}

	logging.Info("Scan %s: volume %q root %q (recursive=%v force=%v policy=%s)",
		job.ID, req.Volume.Label, scanRoot, req.Recursive, req.Force, policy)

	job.Phase = catalog.PhaseEnumerating
	s.cat.UpdateScanJobProgress(job)

	entries, err := s.enumerate(ctx, req, job, scanRoot, res)
	if err != nil {
		s.cat.FinishScanJob(job, catalog.JobFailed)
		return res, err
	}

	s.prepare(ctx, req, job, entries, res)
	s.hashEntries(ctx, req.Source, entries)

	job.Phase = catalog.PhaseApplying
	job.ProgressTotal = int64(len(entries))
	s.cat.UpdateScanJobProgress(job)

	cancelled, err := s.apply(ctx, req, job, policy, entries, res)
	if err != nil {
		s.cat.FinishScanJob(job, catalog.JobFailed)
		return res, err
	}
	if cancelled {
		logging.Warn("Scan %s: cancelled after %d/%d files", job.ID, job.ProgressCurrent, job.ProgressTotal)
		s.cat.FinishScanJob(job, catalog.JobCancelled)
		return res, nil
	}

	// Anything under the scanned tree not confirmed this pass has gone
	// missing. Rows are kept so a rediscovered file restores the same id.
	if req.Recursive {
		missing, err := s.cat.MarkMissing(req.Volume.ID, req.Path, started, time.Now())
		if err != nil {
			logging.Error("Scan %s: mark missing: %v", job.ID, err)
		} else {
			res.Missing = missing
			job.ItemsMissing = missing
		}
	}

	job.Phase = catalog.PhaseDone
	if err := s.cat.FinishScanJob(job, catalog.JobCompleted); err != nil {
		logging.Error("Scan %s: finish job: %v", job.ID, err)
	}
	if err := s.cat.TouchVolumeIndexed(req.Volume.ID, time.Now()); err != nil {
		logging.Error("Scan %s: touch volume: %v", job.ID, err)
	}

	logging.Info("Scan %s: done in %v: %d new, %d updated, %d moved, %d duplicate, %d unchanged, %d skipped, %d missing, %d errors",
		job.ID, time.Since(started).Round(time.Millisecond),
		res.New, res.Updated, res.Moved, res.Duplicates, res.Unchanged, res.Skipped, res.Missing, res.Errors)
	return res, nil
}

// enumerate walks the tree sequentially so apply order matches traversal
// order, collecting supported files and archive containers.
func (s *Scanner) enumerate(ctx context.Context, req *Request, job *catalog.ScanJob, scanRoot string, res *Result) ([]*fileEntry, error) {
	var entries []*fileEntry
	visit := func(absPath string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := volume.Resolve(req.Volume, absPath)
		if err != nil {
			s.recordError(job, res, absPath, err)
			return nil
		}
		e := &fileEntry{
			absPath: absPath,
			relPath: rel,
			size:    info.Size(),
			mtime:   info.ModTime(),
		}
		if f, ok := formats.Lookup(rel); ok {
			e.format = f
		} else if archive.IsArchive(rel) {
			e.isArchive = true
		} else {
			res.Skipped++
			job.ItemsSkipped++
			metrics.ScanActionsTotal.WithLabelValues(string(ActionSkip)).Inc()
			return nil
		}
		entries = append(entries, e)
		return nil
	}

	var err error
	if req.Recursive {
		err = req.Source.Walk(scanRoot, visit)
	} else {
		err = volume.WalkShallow(req.Source, scanRoot, visit)
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", scanRoot, err)
	}

	res.Total = int64(len(entries)) + res.Skipped
	job.ProgressTotal = int64(len(entries))
	s.cat.UpdateScanJobProgress(job)
	logging.Debug("Scan %s: enumerated %d candidates (%d skipped)", job.ID, len(entries), res.Skipped)
	return entries, nil
}

// prepare looks up each entry's existing row and decides whether it needs
// hashing. Unchanged files are the common case on re-scans and cost no I/O
// beyond the stat already done.
func (s *Scanner) prepare(ctx context.Context, req *Request, job *catalog.ScanJob, entries []*fileEntry, res *Result) {
	for _, e := range entries {
		if e.isArchive {
			continue
		}
		existing, err := s.cat.GetAssetByPath(ctx, req.Volume.ID, e.relPath)
		if err != nil {
			e.hashErr = err
			continue
		}
		e.existing = existing
		e.needHash = req.Force || existing == nil || changed(existing, e)
	}
}

func changed(a *catalog.Asset, e *fileEntry) bool {
	return a.FileSize != e.size || a.FileMtime.Unix() != e.mtime.Unix()
}

// hashEntries computes partial hashes in parallel. Results land back on the
// entries, so apply order stays strictly sequential afterwards.
func (s *Scanner) hashEntries(ctx context.Context, src volume.Source, entries []*fileEntry) {
	jobs := make(chan *fileEntry)
	var wg sync.WaitGroup
	var hashed int64

	for i := 0; i < s.hashWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				e.partial, e.hashErr = partialHashFile(src, e.absPath, e.size)
				if e.hashErr == nil {
					atomic.AddInt64(&hashed, 1)
					metrics.ScanFilesHashed.Inc()
				}
			}
		}()
	}

	for _, e := range entries {
		if e.isArchive || !e.needHash || e.hashErr != nil {
			continue
		}
		select {
		case jobs <- e:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
	logging.Debug("Hashed %d files with %d workers", atomic.LoadInt64(&hashed), s.hashWorkers)
}

func partialHashFile(src volume.Source, absPath string, size int64) (string, error) {
	f, err := src.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashing.Partial(f, size)
}

// apply runs the state machine over every entry in traversal order.
func (s *Scanner) apply(ctx context.Context, req *Request, job *catalog.ScanJob, policy catalog.DuplicatePolicy, entries []*fileEntry, res *Result) (cancelled bool, err error) {
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return true, nil
		}
		if i%cancelCheckEvery == 0 {
			if c, err := s.cat.IsJobCancelled(ctx, job.ID); err == nil && c {
				return true, nil
			}
		}

		if e.isArchive {
			s.applyArchive(ctx, req, job, policy, e, res)
		} else {
			s.applyFile(ctx, req, job, policy, e, res)
		}

		job.ProgressCurrent = int64(i + 1)
		if (i+1)%100 == 0 {
			s.cat.UpdateScanJobProgress(job)
		}
	}
	s.cat.UpdateScanJobProgress(job)
	return false, nil
}

func (s *Scanner) applyFile(ctx context.Context, req *Request, job *catalog.ScanJob, policy catalog.DuplicatePolicy, e *fileEntry, res *Result) {
	if e.hashErr != nil {
		s.recordError(job, res, e.relPath, e.hashErr)
		return
	}
	now := time.Now()

	if e.existing != nil && !e.needHash {
		s.touch(job, res, e.existing, now)
		return
	}

	if e.existing != nil {
		// Force with an unchanged hash means the index was already
		// right for this file.
		if req.Force && !changed(e.existing, e) && e.partial == e.existing.PartialHash {
			s.touch(job, res, e.existing, now)
			return
		}
		if err := s.validate(req, e); err != nil {
			s.recordError(job, res, e.relPath, err)
			return
		}
		a := e.existing
		// An edited duplicate no longer shares its original's content.
		if a.IsDuplicate && e.partial != a.PartialHash {
			a.IsDuplicate = false
			a.DuplicateOfID = nil
		}
		a.Filename = path.Base(e.relPath)
		a.FolderPath = volume.FolderPath(e.relPath)
		a.Format = e.format.ID
		a.FileSize = e.size
		a.FileMtime = e.mtime
		a.PartialHash = e.partial
		// Content changed, so any stored full hash is stale.
		a.FullHash = ""
		a.LastSeenAt = now
		if err := s.cat.UpdateAssetMetadata(a); err != nil {
			s.recordCatalogError(job, res, e.relPath, err)
			return
		}
		s.bump(job, res, ActionUpdate)
		return
	}

	if err := s.validate(req, e); err != nil {
		s.recordError(job, res, e.relPath, err)
		return
	}

	matches, err := s.cat.FindByPartialHash(ctx, e.partial)
	if err != nil {
		s.recordCatalogError(job, res, e.relPath, err)
		return
	}

	cand := &Candidate{RelativePath: e.relPath, Size: e.size, PartialHash: e.partial}
	if len(matches) > 0 {
		// The partial hash is only a pre-filter. Verify with a full
		// hash before any merge or reject decision.
		full, err := fullHashFile(req.Source, e.absPath)
		if err != nil {
			s.recordError(job, res, e.relPath, err)
			return
		}
		cand.FullHash = full
		metrics.ScanFullHashesComputed.Inc()
	}

	dec := ResolveDuplicate(cand, matches, policy)
	switch dec.Action {
	case ActionMoved:
		err := s.cat.RepointAsset(dec.Target.ID, e.relPath, path.Base(e.relPath), volume.FolderPath(e.relPath), "", "", e.mtime, now, e.size)
		if err != nil {
			s.recordCatalogError(job, res, e.relPath, err)
			return
		}
		if dec.Target.FullHash == "" && cand.FullHash != "" {
			s.cat.SetAssetFullHash(dec.Target.ID, cand.FullHash)
		}
		s.bump(job, res, ActionMoved)

	case ActionDuplicate:
		if policy == catalog.PolicyWarn {
			a := s.newAsset(req, e, now)
			a.FullHash = cand.FullHash
			a.IsDuplicate = true
			a.DuplicateOfID = &dec.Target.ID
			if err := s.cat.InsertAsset(a); err != nil {
				s.recordCatalogError(job, res, e.relPath, err)
				return
			}
			logging.Warn("Duplicate of asset %d cataloged at %s", dec.Target.ID, e.relPath)
		}
		s.bump(job, res, ActionDuplicate)

	default:
		a := s.newAsset(req, e, now)
		a.FullHash = cand.FullHash
		if err := s.cat.InsertAsset(a); err != nil {
			s.recordCatalogError(job, res, e.relPath, err)
			return
		}
		s.bump(job, res, ActionNew)
	}
}

// applyArchive feeds an archive's members through the same state machine,
// with relative paths synthesized from the container path.
func (s *Scanner) applyArchive(ctx context.Context, req *Request, job *catalog.ScanJob, policy catalog.DuplicatePolicy, e *fileEntry, res *Result) {
	f, err := req.Source.Open(e.absPath)
	if err != nil {
		s.recordError(job, res, e.relPath, err)
		return
	}
	defer f.Close()

	err = archive.Walk(e.relPath, f, f, e.size, func(m archive.Member, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Members are not known at enumeration time; grow the total as
		// they are discovered so per-action counts never exceed it.
		res.Total++
		format, ok := formats.Lookup(m.Path)
		if !ok {
			res.Skipped++
			job.ItemsSkipped++
			metrics.ScanActionsTotal.WithLabelValues(string(ActionSkip)).Inc()
			return nil
		}
		mtime := m.ModTime
		if mtime.IsZero() {
			mtime = e.mtime
		}
		rel := archive.MemberPath(e.relPath, m.Path)
		now := time.Now()

		existing, err := s.cat.GetAssetByPath(ctx, req.Volume.ID, rel)
		if err != nil {
			s.recordCatalogError(job, res, rel, err)
			return nil
		}
		if existing != nil && !req.Force && existing.FileSize == m.Size && existing.FileMtime.Unix() == mtime.Unix() {
			s.touch(job, res, existing, now)
			return nil
		}

		partial, size, err := hashing.PartialStream(r)
		if err != nil {
			s.recordError(job, res, rel, err)
			return nil
		}
		metrics.ScanFilesHashed.Inc()

		if existing != nil {
			if existing.IsDuplicate && partial != existing.PartialHash {
				existing.IsDuplicate = false
				existing.DuplicateOfID = nil
			}
			existing.Filename = path.Base(m.Path)
			existing.FolderPath = volume.FolderPath(rel)
			existing.Format = format.ID
			existing.FileSize = size
			existing.FileMtime = mtime
			existing.PartialHash = partial
			existing.FullHash = ""
			existing.LastSeenAt = now
			if err := s.cat.UpdateAssetMetadata(existing); err != nil {
				s.recordCatalogError(job, res, rel, err)
				return nil
			}
			s.bump(job, res, ActionUpdate)
			return nil
		}

		matches, err := s.cat.FindByPartialHash(ctx, partial)
		if err != nil {
			s.recordCatalogError(job, res, rel, err)
			return nil
		}
		// Member streams cannot be re-read for full-hash verification,
		// so the partial pre-filter decides alone here.
		dec := ResolveDuplicate(&Candidate{RelativePath: rel, Size: size, PartialHash: partial}, matches, policy)

		a := &catalog.Asset{
			VolumeID:      req.Volume.ID,
			Kind:          format.Kind,
			RelativePath:  rel,
			Filename:      path.Base(m.Path),
			FolderPath:    volume.FolderPath(rel),
			Format:        format.ID,
			FileSize:      size,
			FileMtime:     mtime,
			PartialHash:   partial,
			ArchivePath:   e.relPath,
			ArchiveMember: m.Path,
			IndexStatus:   catalog.StatusIndexed,
			LastSeenAt:    now,
		}

		switch dec.Action {
		case ActionMoved:
			err := s.cat.RepointAsset(dec.Target.ID, rel, a.Filename, a.FolderPath, e.relPath, m.Path, mtime, now, size)
			if err != nil {
				s.recordCatalogError(job, res, rel, err)
				return nil
			}
			s.bump(job, res, ActionMoved)
		case ActionDuplicate:
			if policy == catalog.PolicyWarn {
				a.IsDuplicate = true
				a.DuplicateOfID = &dec.Target.ID
				if err := s.cat.InsertAsset(a); err != nil {
					s.recordCatalogError(job, res, rel, err)
					return nil
				}
			}
			s.bump(job, res, ActionDuplicate)
		default:
			if err := s.cat.InsertAsset(a); err != nil {
				s.recordCatalogError(job, res, rel, err)
				return nil
			}
			s.bump(job, res, ActionNew)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.recordError(job, res, e.relPath, err)
	}
}

// validate runs the format's validator, reading the file body when the
// format needs parsing. The companion lookup is bound to the volume source
// so it behaves the same locally and over SFTP.
func (s *Scanner) validate(req *Request, e *fileEntry) error {
	if e.format == nil || e.format.Validate == nil {
		return nil
	}
	var content []byte
	if e.format.NeedsContent {
		f, err := req.Source.Open(e.absPath)
		if err != nil {
			return err
		}
		defer f.Close()
		content, err = io.ReadAll(f)
		if err != nil {
			return err
		}
	}
	exists := func(rel string) bool {
		abs, err := volume.Absolute(req.Volume, rel)
		if err != nil {
			return false
		}
		_, err = req.Source.Stat(abs)
		return err == nil
	}
	return e.format.Validate(e.relPath, content, exists)
}

func fullHashFile(src volume.Source, absPath string) (string, error) {
	f, err := src.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashing.Full(f)
}

func (s *Scanner) newAsset(req *Request, e *fileEntry, now time.Time) *catalog.Asset {
	return &catalog.Asset{
		VolumeID:     req.Volume.ID,
		Kind:         e.format.Kind,
		RelativePath: e.relPath,
		Filename:     path.Base(e.relPath),
		FolderPath:   volume.FolderPath(e.relPath),
		Format:       e.format.ID,
		FileSize:     e.size,
		FileMtime:    e.mtime,
		PartialHash:  e.partial,
		IndexStatus:  catalog.StatusIndexed,
		LastSeenAt:   now,
	}
}

func (s *Scanner) touch(job *catalog.ScanJob, res *Result, a *catalog.Asset, now time.Time) {
	if err := s.cat.TouchAssetSeen(a.ID, now); err != nil {
		s.recordCatalogError(job, res, a.RelativePath, err)
		return
	}
	s.bump(job, res, ActionUnchanged)
}

func (s *Scanner) bump(job *catalog.ScanJob, res *Result, action Action) {
	metrics.ScanActionsTotal.WithLabelValues(string(action)).Inc()
	job.ItemsProcessed++
	switch action {
	case ActionNew:
		res.New++
	case ActionUpdate:
		res.Updated++
	case ActionMoved:
		res.Moved++
	case ActionDuplicate:
		res.Duplicates++
	case ActionUnchanged:
		res.Unchanged++
	}
}

func (s *Scanner) recordError(job *catalog.ScanJob, res *Result, filePath string, err error) {
	typ := classifyError(err)
	msg := err.Error()
	// Keep job rows readable even for deeply wrapped errors.
	if len(msg) > 500 {
		msg = msg[:500]
	}
	logging.Warn("Scan %s: %s: %s error: %v", job.ID, filePath, typ, err)
	if rerr := s.cat.RecordJobError(job.ID, filePath, typ, msg); rerr != nil {
		logging.Error("Scan %s: record job error: %v", job.ID, rerr)
	}
	job.ItemsFailed++
	res.Errors++
	metrics.ScanActionsTotal.WithLabelValues(string(ActionError)).Inc()
}

func (s *Scanner) recordCatalogError(job *catalog.ScanJob, res *Result, filePath string, err error) {
	logging.Error("Scan %s: %s: catalog error: %v", job.ID, filePath, err)
	if rerr := s.cat.RecordJobError(job.ID, filePath, ErrTypeCatalog, err.Error()); rerr != nil {
		logging.Error("Scan %s: record job error: %v", job.ID, rerr)
	}
	job.ItemsFailed++
	res.Errors++
	metrics.ScanActionsTotal.WithLabelValues(string(ActionError)).Inc()
}

// Cancel requests cancellation of a running job. The apply loop notices at
// its next check and finishes the job as cancelled.
func (s *Scanner) Cancel(jobID string) error {
	return s.cat.CancelScanJob(jobID)
}
