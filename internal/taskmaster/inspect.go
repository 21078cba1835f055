package taskmaster

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// Target names a project directory to inspect.
type Target struct {
	Name string
	Path string
}

// Inspector runs the folder and MCP detections of projects and reconciles
// them into a ProjectStatus.
type Inspector struct {
	mcp         *MCPDetector
	concurrency int
	now         func() time.Time
}

func NewInspector(mcp *MCPDetector) *Inspector {
	return &Inspector{mcp: mcp, concurrency: 8, now: time.Now}
}

func (i *Inspector) MCP() *MCPDetector {
	return i.mcp
}

// Inspect detects both facts of one project concurrently.
func (i *Inspector) Inspect(_ context.Context, t Target) *ProjectStatus {
	var (
		wg     conc.WaitGroup
		folder *FolderDetection
		mcp    *MCPDetection
	)
	wg.Go(func() { folder = DetectFolder(t.Path) })
	wg.Go(func() { mcp = i.mcp.Detect(t.Path) })
	wg.Wait()
	return NewProjectStatus(t.Name, t.Path, folder, mcp, i.now())
}

// InspectAll inspects targets with bounded parallelism. The result keeps
// the order of targets.
func (i *Inspector) InspectAll(ctx context.Context, targets []Target) []*ProjectStatus {
	out := make([]*ProjectStatus, len(targets))
	p := pool.New().WithMaxGoroutines(i.concurrency).WithContext(ctx)
	for idx, t := range targets {
		p.Go(func(ctx context.Context) error {
			out[idx] = i.Inspect(ctx, t)
			return nil
		})
	}
	_ = p.Wait()
	return out
}
