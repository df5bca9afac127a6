package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Runtime profiles by host size
const (
	// 2 vCPU, 4GB RAM
	SmallServerGOGC     = 400
	SmallServerMemLimit = 2.5 * 1024 * 1024 * 1024
	SmallServerMaxProcs = 1

	// 4-8 vCPU, 8-16GB RAM
	MediumServerGOGC     = 600
	MediumServerMemLimit = 8 * 1024 * 1024 * 1024

	// 16+ vCPU, 32GB+ RAM
	LargeServerGOGC     = 800
	LargeServerMemLimit = 16 * 1024 * 1024 * 1024
)

func detectServerProfile() (gogc int, memLimit int64, maxProcs int) {
	totalCPU := runtime.NumCPU()
	switch {
	case totalCPU <= 2:
		return SmallServerGOGC, int64(SmallServerMemLimit), SmallServerMaxProcs
	case totalCPU <= 8:
		return MediumServerGOGC, int64(MediumServerMemLimit), totalCPU / 2
	default:
		return LargeServerGOGC, int64(LargeServerMemLimit), totalCPU / 2
	}
}

// InitRuntimeForHFT sizes GC and scheduler settings for the scan loop.
// GOGC, GOMAXPROCS and GOMEMLIMIT from the environment win.
func InitRuntimeForHFT() {
	defaultGOGC, defaultMemLimit, defaultMaxProcs := detectServerProfile()

	// Each scan allocates a fresh quote memo and path buffers; a high GOGC
	// keeps collections out of the hot loop and GOMEMLIMIT caps the heap.
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(defaultGOGC)
		log.Info().Int("GOGC", defaultGOGC).Msg("[runtime] set GOGC")
	}

	// GOMAXPROCS also bounds how many start tokens a scan searches at once.
	if os.Getenv("GOMAXPROCS") == "" {
		maxProcs := max(defaultMaxProcs, 1)
		runtime.GOMAXPROCS(maxProcs)
		log.Info().
			Int("GOMAXPROCS", maxProcs).
			Int("total_cpu", runtime.NumCPU()).
			Msg("[runtime] set GOMAXPROCS")
	}

	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(defaultMemLimit)
		log.Info().
			Int64("GOMEMLIMIT_bytes", defaultMemLimit).
			Float64("GOMEMLIMIT_GB", float64(defaultMemLimit)/1024/1024/1024).
			Msg("[runtime] set memory limit")
	}

	logRuntimeSettings()
}

func logRuntimeSettings() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Uint64("heap_sys_mb", memStats.HeapSys/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] current runtime settings")
}
