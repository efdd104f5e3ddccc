package handlers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/cliparr/internal/queue"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// workerStaleAfter is how long a worker may miss heartbeats before the
// system report marks it dead.
const workerStaleAfter = 90 * time.Second

// SystemHandler reports process, host, and queue status.
type SystemHandler struct {
	version string
	broker  *queue.Broker
	logger  *slog.Logger
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(version string, broker *queue.Broker, logger *slog.Logger) *SystemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemHandler{
		version: version,
		broker:  broker,
		logger:  logger,
	}
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystem",
		Method:      "GET",
		Path:        "/system",
		Summary:     "System status",
		Description: "Returns host load, memory usage, queue depth, and registered workers",
		Tags:        []string{"System"},
	}, h.GetSystem)
}

// GetSystemInput is the input for the system status endpoint.
type GetSystemInput struct{}

// GetSystemOutput is the output for the system status endpoint.
type GetSystemOutput struct {
	Body SystemResponse
}

// GetSystem returns host metrics and the worker registry view.
func (h *SystemHandler) GetSystem(ctx context.Context, input *GetSystemInput) (*GetSystemOutput, error) {
	resp := &GetSystemOutput{}
	resp.Body = SystemResponse{
		Version:    h.version,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		CPU:        h.getCPUInfo(),
		Memory:     h.getMemoryInfo(),
	}

	if h.broker != nil {
		depth, err := h.broker.QueueDepth(ctx)
		if err != nil {
			h.logger.Warn("failed to read queue depth", slog.Any("error", err))
		} else {
			resp.Body.QueueDepth = depth
		}

		workers, err := h.broker.ListWorkers(ctx)
		if err != nil {
			h.logger.Warn("failed to list workers", slog.Any("error", err))
		}
		resp.Body.Workers = make([]WorkerView, 0, len(workers))
		for _, w := range workers {
			view := WorkerView{
				Name:  w.Name,
				Host:  w.Host,
				PID:   w.PID,
				Queue: w.Queue,
				Alive: w.Alive(workerStaleAfter),
			}
			if !w.StartedAt.IsZero() {
				view.StartedAt = w.StartedAt.UTC().Format(time.RFC3339)
			}
			if !w.LastBeat.IsZero() {
				view.LastBeat = w.LastBeat.UTC().Format(time.RFC3339)
			}
			resp.Body.Workers = append(resp.Body.Workers, view)
		}
	}

	return resp, nil
}

// getCPUInfo returns CPU load information.
func (h *SystemHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()

	info := CPUInfo{
		Cores: cores,
	}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15

		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

// getMemoryInfo returns memory usage information.
func (h *SystemHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	memInfo, err := proc.MemoryInfo()
	if err == nil && memInfo != nil {
		info.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}

	return info
}
