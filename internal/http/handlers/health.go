package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// mediaProbeTimeout bounds the media-server reachability check so a wedged
// admin API cannot stall the health endpoint.
const mediaProbeTimeout = 2 * time.Second

// MediaProbe checks that the media server's admin API answers.
type MediaProbe interface {
	Ping(ctx context.Context) error
}

// CPUInfo is the load slice of the health response.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo is the memory slice of the health response.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
	// ProcessTreeMB includes the renderer and any other children the
	// engine spawned.
	ProcessTreeMB  float64 `json:"process_tree_mb"`
	ChildProcesses int     `json:"child_processes"`
}

// MediaServerHealth is the media-server slice of the health response.
type MediaServerHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUInfo       CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	MediaServer   MediaServerHealth `json:"media_server"`
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	media     MediaProbe
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, media MediaProbe) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		media:     media,
	}
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns process health, system load and media-server reachability",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the engine.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	media := h.mediaHealth(ctx)
	status := "healthy"
	if media.Status != "ok" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPUInfo:       h.cpuInfo(),
			Memory:        h.memoryInfo(),
			MediaServer:   media,
		},
	}, nil
}

func (h *HealthHandler) cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(info.Cores)) * 100
		}
	}

	return info
}

func (h *HealthHandler) memoryInfo() MemoryInfo {
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

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		info.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
		info.ProcessTreeMB = info.ProcessMemoryMB
	}

	if children, err := proc.Children(); err == nil {
		info.ChildProcesses = len(children)
		for _, child := range children {
			if childMem, err := child.MemoryInfo(); err == nil && childMem != nil {
				info.ProcessTreeMB += float64(childMem.RSS) / 1024 / 1024
			}
		}
	}

	return info
}

func (h *HealthHandler) mediaHealth(ctx context.Context) MediaServerHealth {
	health := MediaServerHealth{Status: "ok"}
	if h.media == nil {
		health.Status = "unknown"
		return health
	}

	probeCtx, cancel := context.WithTimeout(ctx, mediaProbeTimeout)
	defer cancel()

	start := time.Now()
	err := h.media.Ping(probeCtx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		health.Status = "error"
		health.Error = err.Error()
	}

	return health
}
