package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/batch"
	"github.com/Sriram-PR/webfetch/pkg/config"
	"github.com/Sriram-PR/webfetch/pkg/download"
	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/models"
	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/parse"
	"github.com/Sriram-PR/webfetch/pkg/persist"
	"github.com/Sriram-PR/webfetch/pkg/storage"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Runner drives a whole crawl: pages flow from the batch queue through
// the crawler, discovered in-scope links feed back into the queue, page
// images are bulk-downloaded, and outcomes land in the state store.
type Runner struct {
	cfg      *config.AppConfig
	crawler  *Crawler
	proc     *batch.Processor[models.WorkItem]
	tracker  *obs.ErrorTracker
	store    storage.StateStore // nil when state persistence is disabled
	meta     *persist.MetadataManager
	extract  *parse.MetadataExtractor
	dl       *download.Downloader // Built once per Run, after the session opens
	baseURL  *url.URL
	maxDepth int
	log      *logrus.Entry
}

// NewRunner wires a Runner from validated configuration. store may be
// nil; the crawl then relies on the in-memory visited set alone.
func NewRunner(cfg *config.AppConfig, store storage.StateStore, log *logrus.Entry) (*Runner, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing base URL %q: %v", utils.ErrConfigValidation, cfg.BaseURL, err)
	}

	tracker := obs.NewErrorTracker(log)
	crawler, err := NewCrawler(cfg, tracker, log)
	if err != nil {
		return nil, err
	}
	if cfg.RespectRobots {
		crawler.EnableRobots()
	}

	meta, err := persist.NewMetadataManager(filepath.Join(cfg.OutputDir, "metadata"), log)
	if err != nil {
		return nil, err
	}

	extractor := parse.NewMetadataExtractor(map[string]parse.Selector{
		"title":       {CSS: "title"},
		"description": {CSS: `meta[name="description"]`, Attr: "content"},
		"canonical":   {CSS: `link[rel="canonical"]`, Attr: "href"},
	}, log)

	return &Runner{
		cfg:      cfg,
		crawler:  crawler,
		proc:     batch.NewProcessor[models.WorkItem](cfg.BatchSize, cfg.BatchDelay, log),
		tracker:  tracker,
		store:    store,
		meta:     meta,
		extract:  extractor,
		baseURL:  base,
		maxDepth: cfg.MaxDepth,
		log:      log,
	}, nil
}

// Tracker exposes the runner's error tracker for end-of-run summaries.
func (r *Runner) Tracker() *obs.ErrorTracker {
	return r.tracker
}

// Queue exposes the runner's work queue so resume can seed it.
func (r *Runner) Queue() *batch.Processor[models.WorkItem] {
	return r.proc
}

// Run executes the crawl from the configured base URL until the work
// queue drains or ctx is cancelled. The session is opened for the run
// and closed on return.
func (r *Runner) Run(ctx context.Context) error {
	session := r.crawler.Session()
	session.Start()
	defer session.Stop()

	client, err := session.Client()
	if err != nil {
		return err
	}
	r.dl = download.NewDownloader(
		client,
		r.tracker,
		r.cfg.UserAgent,
		r.cfg.DownloadLimit,
		r.cfg.ChunkSize,
		fetch.RetryPolicy{MaxRetries: r.cfg.MaxRetries, BaseDelay: r.cfg.BaseRetryDelay},
		r.cfg.OutputDir,
		r.log.WithField("component", "downloader"),
	)

	seed := parse.NormalizeURL(r.baseURL)
	if r.crawler.MarkVisited(seed) {
		r.proc.AddItems([]models.WorkItem{{URL: seed, Depth: 0}})
	}

	start := time.Now()
	runErr := r.proc.ProcessBatches(ctx, r.handleBatch)

	if _, saveErr := r.dl.SaveFailedDownloads(); saveErr != nil {
		r.log.WithError(saveErr).Warn("Could not persist failed downloads list")
	}

	r.log.WithFields(logrus.Fields{
		"visited":    r.crawler.VisitedCount(),
		"downloaded": r.dl.Completed(),
		"duration":   time.Since(start).Round(time.Millisecond),
		"errors":     r.tracker.Summary().TotalErrors,
	}).Info("Crawl finished")
	return runErr
}

// handleBatch processes one batch of pages. Per-item fetch failures are
// tracked and stored, not escalated; only cancellation fails the batch.
func (r *Runner) handleBatch(ctx context.Context, items []models.WorkItem) error {
	var images []download.Item

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageImages, err := r.processPage(ctx, item)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Already tracked; move on to the next page
			continue
		}
		images = append(images, pageImages...)
	}

	if len(images) > 0 {
		r.downloadImages(ctx, images)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// processPage fetches and parses one page, stores its outcome, saves its
// metadata, enqueues discovered in-scope links, and returns the image
// download items it contributes.
func (r *Runner) processPage(ctx context.Context, item models.WorkItem) ([]download.Item, error) {
	pageLog := r.log.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})

	if r.skipPerStore(item.URL, pageLog) {
		return nil, nil
	}

	body, err := r.crawler.FetchPage(ctx, item.URL)
	if err != nil {
		r.storeFetch(item.URL, &models.FetchRecord{
			Status:    models.FetchStatusFailure,
			LastError: utils.CategorizeError(err),
			FetchedAt: time.Now(),
		})
		pageLog.WithError(err).Warn("Page fetch failed")
		return nil, err
	}

	r.storeFetch(item.URL, &models.FetchRecord{
		Status:      models.FetchStatusSuccess,
		FetchedAt:   time.Now(),
		ContentSize: int64(len(body)),
	})

	doc, parseErr := parse.ParseHTML(body)
	if parseErr != nil {
		r.tracker.RecordErr(utils.KindUnexpectedError, parseErr, map[string]interface{}{"url": item.URL})
		pageLog.WithError(parseErr).Warn("Page parse failed")
		return nil, nil
	}

	pageURL, urlErr := url.Parse(item.URL)
	if urlErr != nil {
		return nil, nil
	}

	r.saveMetadata(item.URL, doc, pageLog)
	r.enqueueLinks(doc, pageURL, item.Depth, pageLog)
	return r.imageItems(doc, pageURL), nil
}

// skipPerStore consults the state store and reports whether the page was
// already fetched successfully in a previous run.
func (r *Runner) skipPerStore(pageURL string, pageLog *logrus.Entry) bool {
	if r.store == nil {
		return false
	}
	status, _, err := r.store.CheckFetch(pageURL)
	if err != nil {
		pageLog.WithError(err).Warn("State store check failed, fetching anyway")
		return false
	}
	if status == models.FetchStatusSuccess {
		pageLog.Debug("Already fetched in a previous run, skipping")
		return true
	}
	if _, err := r.store.MarkURLSeen(pageURL); err != nil {
		pageLog.WithError(err).Warn("Could not claim URL in state store")
	}
	return false
}

func (r *Runner) storeFetch(pageURL string, record *models.FetchRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.UpdateFetch(pageURL, record); err != nil {
		r.log.WithError(err).WithField("url", pageURL).Warn("Could not store fetch outcome")
	}
}

func (r *Runner) saveMetadata(pageURL string, doc *goquery.Document, pageLog *logrus.Entry) {
	fields := r.extract.Extract(doc)
	record := persist.Metadata{"url": pageURL}
	for k, v := range fields {
		record[k] = v
	}
	if err := r.meta.Save(pageURL, record); err != nil {
		r.tracker.RecordErr(utils.KindFileError, err, map[string]interface{}{"url": pageURL})
		pageLog.WithError(err).Warn("Could not save page metadata")
	}
}

func (r *Runner) enqueueLinks(doc *goquery.Document, pageURL *url.URL, depth int, pageLog *logrus.Entry) {
	if r.maxDepth > 0 && depth >= r.maxDepth {
		return
	}

	var next []models.WorkItem
	for _, link := range parse.ExtractLinks(doc, pageURL) {
		if !r.crawler.IsValidURL(link) {
			continue
		}
		if !r.crawler.MarkVisited(link) {
			continue
		}
		next = append(next, models.WorkItem{URL: link, Depth: depth + 1})
	}
	if len(next) > 0 {
		pageLog.WithField("new_links", len(next)).Debug("Discovered in-scope links")
		r.proc.AddItems(next)
	}
}

// imageItems maps the page's images to download items, skipping ones the
// state store already has.
func (r *Runner) imageItems(doc *goquery.Document, pageURL *url.URL) []download.Item {
	var items []download.Item
	for _, img := range parse.ExtractImages(doc, pageURL) {
		if r.store != nil {
			status, _, err := r.store.CheckDownload(img)
			if err == nil && status == models.FetchStatusSuccess {
				continue
			}
		}
		dest := filepath.Join(r.cfg.OutputDir, "images", utils.CleanFilename(img, r.baseURL.Host))
		items = append(items, download.Item{URL: img, Dest: dest})
	}
	return items
}

func (r *Runner) downloadImages(ctx context.Context, items []download.Item) {
	results := r.dl.DownloadBatch(ctx, items)
	for i, ok := range results {
		r.storeDownload(items[i], ok)
	}
}

func (r *Runner) storeDownload(item download.Item, ok bool) {
	if r.store == nil {
		return
	}
	record := &models.DownloadRecord{Dest: item.Dest, DownloadedAt: time.Now()}
	if ok {
		record.Status = models.FetchStatusSuccess
	} else {
		record.Status = models.FetchStatusFailure
	}
	if err := r.store.UpdateDownload(item.URL, record); err != nil {
		r.log.WithError(err).WithField("url", item.URL).Warn("Could not store download outcome")
	}
}
