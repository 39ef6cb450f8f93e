package run

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/photodate/internal/app/planner"
	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/infra/fsx"
	"github.com/John-Robertt/photodate/internal/infra/imgx"
	"github.com/John-Robertt/photodate/internal/resolve"
	"github.com/John-Robertt/photodate/internal/scan"
)

// Deps 汇集执行所需的外部能力；零值字段使用默认实现（测试可替换）。
type Deps struct {
	Log      *zap.SugaredLogger
	Location *time.Location
	Resolver *resolve.Resolver

	ReadState func(path string) (domain.FileState, error)
	WriteExif func(path string, ts domain.Timestamp) error
	SetTimes  func(path string, t time.Time) error
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Resolver == nil {
		d.Resolver = resolve.New(resolve.DefaultRegistry(d.Location), d.Log)
	}
	if d.ReadState == nil {
		d.ReadState = planner.ReadState
	}
	if d.WriteExif == nil {
		d.WriteExif = imgx.WriteDate
	}
	if d.SetTimes == nil {
		d.SetTimes = fsx.SetTimes
	}
	return d
}

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
//
// 单个文件的失败只降级为 item 级失败，不影响后续文件。
// ctx 取消后不再开始下一个文件（未处理的文件不出现在 report 中）。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	deps = deps.withDefaults()
	if obs == nil {
		obs = nopObserver{}
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Mode:      eff.Mode,
		DryRun:    eff.DryRun,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 64),
	}

	files, err := inputs(eff)
	if err != nil {
		deps.Log.Errorw("读取输入失败", "path", eff.Path, "error", err)
		rr.Items = append(rr.Items, syntheticFailed(eff.Path, err))
		obs.OnStart(eff, 0)
		return finish(&rr, obs)
	}

	obs.OnStart(eff, len(files))
	deps.Log.Infow("开始处理", "path", eff.Path, "files", len(files), "mode", eff.Mode, "dry_run", eff.DryRun)

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			deps.Log.Warnw("已取消，停止处理剩余文件", "done", i, "total", len(files), "error", err)
			break
		}
		started := time.Now()
		item := processOne(eff, deps, f)
		rr.Items = append(rr.Items, item)
		obs.OnItemDone(i+1, len(files), item, time.Since(started))
	}

	return finish(&rr, obs)
}

func finish(rr *domain.RunReport, obs Observer) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	obs.OnFinish(*rr)
	return *rr
}

// inputs 在循环开始前一次性确定输入快照。
func inputs(eff config.EffectiveConfig) ([]domain.MediaFile, error) {
	if eff.IsDir {
		return scan.List(eff.Path, scan.Options{Extensions: eff.Extensions, SkipNames: eff.SkipNames})
	}
	f, err := scan.Stat(eff.Path)
	if err != nil {
		return nil, err
	}
	return []domain.MediaFile{f}, nil
}

func processOne(eff config.EffectiveConfig, deps Deps, f domain.MediaFile) domain.ItemResult {
	log := deps.Log.With("file", f.Name)
	item := domain.ItemResult{
		File:   f.Name,
		Status: domain.StatusProcessed, // 失败/跳过时覆盖
	}

	// 只处理 JPEG：其他类型不解析、不写入。
	if !f.IsJPEG() {
		item.Status = domain.StatusSkipped
		item.Exif = domain.SinkUnsupported
		item.Mtime = domain.SinkUnsupported
		log.Infow("不是 JPEG，跳过", "ext", f.Ext)
		return item
	}

	res := deps.Resolver.Resolve(f.AbsPath, eff.Explicit, eff.Mode)
	item.Attempts = domain.AttemptResults(res.Attempts)
	if !res.Resolved() {
		failItem(&item, domain.ErrorCode(res.Err), res.Err)
		return item
	}
	item.Source = res.Source
	item.Timestamp = res.Timestamp

	st, err := deps.ReadState(f.AbsPath)
	if err != nil {
		log.Errorw("读取文件现状失败", "error", err)
		failItem(&item, domain.ErrorCode(err), err)
		return item
	}
	log.Debugw("文件现状",
		"mtime", st.ModTime, "atime", st.AccessTime, "birthtime", st.BirthTime,
		"exif_original", st.ExifOriginal, "exif_digitized", st.ExifDigitized,
	)

	p, err := planner.Plan(f, res, st, domain.PlanOptions{NoExif: eff.NoExif, Location: deps.Location})
	if err != nil {
		failItem(&item, domain.ErrCodeIOFailed, err)
		return item
	}

	item.Exif = exifStatus(p)
	item.Mtime = domain.SinkUnchanged
	if p.Noop() {
		item.Status = domain.StatusSkipped
		log.Infow("日期已正确，跳过", "date", p.Target.String(), "source", res.Source)
		return item
	}

	if eff.DryRun {
		if p.NeedMtime {
			item.Mtime = domain.SinkPlanned
		}
		log.Infow("dry-run：计划写入", "date", p.Target.String(), "source", res.Source, "exif", item.Exif, "mtime", item.Mtime)
		return item
	}

	// EXIF 重写会替换文件，因此必须先写 EXIF 再设 mtime。
	if p.NeedExif {
		if err := deps.WriteExif(f.AbsPath, p.Target); err != nil {
			log.Errorw("写入 EXIF 失败", "error", err)
			item.Exif = domain.SinkFailed
			failItem(&item, domain.ErrCodeExifWriteFailed, err)
		} else {
			item.Exif = domain.SinkWritten
		}
	}
	// EXIF 失败时原文件保持不变，mtime 仍然照常修正。
	if p.NeedMtime {
		if err := deps.SetTimes(f.AbsPath, p.Mtime); err != nil {
			log.Errorw("设置修改时间失败", "error", err)
			item.Mtime = domain.SinkFailed
			if item.Status != domain.StatusFailed {
				failItem(&item, domain.ErrCodeMtimeWriteFailed, err)
			}
		} else {
			item.Mtime = domain.SinkWritten
		}
	}

	if item.Status == domain.StatusProcessed {
		log.Infow("已写入日期", "date", p.Target.String(), "source", res.Source, "exif", item.Exif, "mtime", item.Mtime)
	}
	return item
}

func exifStatus(p domain.ItemPlan) string {
	if p.NeedExif {
		return domain.SinkPlanned
	}
	switch p.ExifSkip {
	case planner.ExifSkipDisabled:
		return domain.SinkDisabled
	default:
		return domain.SinkUnchanged
	}
}

func failItem(item *domain.ItemResult, code string, err error) {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	if err != nil {
		item.ErrorMsg = err.Error()
	}
}

func syntheticFailed(path string, err error) domain.ItemResult {
	item := domain.ItemResult{File: path}
	failItem(&item, domain.ErrorCode(err), err)
	return item
}
