package core

import (
	"insights-gateway/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultLogBatchSize = 100
	defaultLogFlush     = 5 * time.Second
	insertBatchSize     = 100
	// 调度日志只保留最新的 N 条
	maxDispatchLogs = 1000
)

// AsyncDispatchLogger 异步调度日志记录器
// 每次尝试一条 DispatchLog，批量写入并更新后端统计；仅用于审计，不回读到运行时状态
type AsyncDispatchLogger struct {
	db        *gorm.DB
	logChan   chan *models.DispatchLog
	logger    *logrus.Logger
	batchSize int
	flushTime time.Duration
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
}

func NewAsyncDispatchLogger(db *gorm.DB, logger *logrus.Logger) *AsyncDispatchLogger {
	return newAsyncDispatchLogger(db, logger, defaultLogBatchSize, defaultLogFlush)
}

func newAsyncDispatchLogger(db *gorm.DB, logger *logrus.Logger, batchSize int, flushTime time.Duration) *AsyncDispatchLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &AsyncDispatchLogger{
		db:        db,
		logChan:   make(chan *models.DispatchLog, 1000),
		logger:    logger,
		batchSize: batchSize,
		flushTime: flushTime,
		quit:      make(chan struct{}),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.workerLoop()
	}()
	return l
}

// Record 提交日志到队列，队列满时丢弃，不阻塞调度
func (l *AsyncDispatchLogger) Record(entry *models.DispatchLog) {
	select {
	case l.logChan <- entry:
	default:
		l.logger.Warn("Dispatch log channel full, dropping entry")
	}
}

func (l *AsyncDispatchLogger) workerLoop() {
	var batch []*models.DispatchLog
	ticker := time.NewTicker(l.flushTime)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.logChan:
			batch = append(batch, entry)
			if len(batch) >= l.batchSize {
				l.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = nil
			}
		case <-l.quit:
			// 退出前写入队列中剩余的日志
			for {
				select {
				case entry := <-l.logChan:
					batch = append(batch, entry)
				default:
					if len(batch) > 0 {
						l.flush(batch)
					}
					return
				}
			}
		}
	}
}

type statDelta struct {
	Success      int64
	RateLimited  int64
	Error        int64
	TotalLatency float64
	RequestCount int64
}

// flush 批量写入日志、清理旧记录并更新统计
func (l *AsyncDispatchLogger) flush(entries []*models.DispatchLog) {
	l.logger.Debugf("[DispatchLog] Flushing %d entries", len(entries))

	if err := l.db.CreateInBatches(entries, insertBatchSize).Error; err != nil {
		l.logger.Errorf("[DispatchLog] Failed to flush entries: %v", err)
	}
	l.prune()

	deltas := make(map[string]*statDelta)
	for _, e := range entries {
		d, ok := deltas[e.Backend]
		if !ok {
			d = &statDelta{}
			deltas[e.Backend] = d
		}
		d.RequestCount++
		d.TotalLatency += float64(e.Duration)
		switch e.Outcome {
		case models.OutcomeSuccess:
			d.Success++
		case models.OutcomeRateLimited:
			d.RateLimited++
		default:
			d.Error++
		}
	}

	for backend, d := range deltas {
		var stat models.BackendStats
		err := l.db.Where("backend = ?", backend).First(&stat).Error
		if err == nil {
			stat.Success += d.Success
			stat.RateLimited += d.RateLimited
			stat.Error += d.Error
			stat.TotalLatency += d.TotalLatency
			stat.RequestCount += d.RequestCount
			err = l.db.Save(&stat).Error
		} else {
			err = l.db.Create(&models.BackendStats{
				Backend:      backend,
				Success:      d.Success,
				RateLimited:  d.RateLimited,
				Error:        d.Error,
				TotalLatency: d.TotalLatency,
				RequestCount: d.RequestCount,
			}).Error
		}
		if err != nil {
			l.logger.Errorf("[DispatchLog] Failed to update stats for %s: %v", backend, err)
		}
	}
}

// prune 只保留最新的 maxDispatchLogs 条
func (l *AsyncDispatchLogger) prune() {
	var pivotID uint
	err := l.db.Model(&models.DispatchLog{}).Select("id").Order("id desc").Offset(maxDispatchLogs).Limit(1).Scan(&pivotID).Error
	if err != nil || pivotID == 0 {
		return
	}
	if err := l.db.Where("id <= ?", pivotID).Delete(&models.DispatchLog{}).Error; err != nil {
		l.logger.Errorf("[DispatchLog] Failed to prune entries: %v", err)
	}
}

// Stats 所有后端的统计信息
func (l *AsyncDispatchLogger) Stats() ([]models.BackendStats, error) {
	var stats []models.BackendStats
	err := l.db.Order("backend asc").Find(&stats).Error
	return stats, err
}

// Close 写入剩余日志后停止
func (l *AsyncDispatchLogger) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
		l.wg.Wait()
	})
}
