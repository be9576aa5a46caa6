// Package benchmark - Repeated prediction runs with throughput and memory reports.
package benchmark

import (
	"runtime"
	"time"

	"github.com/nvr-ai/go-infer/inference"
)

// Report captures one scenario run.
type Report struct {
	Scenario        Scenario            `json:"scenario"`
	Timestamp       time.Time           `json:"timestamp"`
	TotalDuration   time.Duration       `json:"total_duration"`
	FramesPerSecond float64             `json:"frames_per_second"`
	Stages          []inference.Summary `json:"stages"`
	MemoryStats     MemoryMetrics       `json:"memory_stats"`
	NumCPU          int                 `json:"num_cpu"`
	Errors          int                 `json:"errors"`
	ErrorRate       float64             `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

func readMemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return m
}

// memoryDelta reports the end state plus what was allocated since start.
func memoryDelta(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
		HeapSysBytes:    end.HeapSys,
	}
}
