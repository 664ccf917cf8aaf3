// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type memoryStats struct {
	ProcessRSS    uint64  `json:"processRss"`
	SystemTotal   uint64  `json:"systemTotal"`
	SystemUsedPct float64 `json:"systemUsedPercent"`
}

type healthResponse struct {
	Status     string       `json:"status"`
	Service    string       `json:"service"`
	Uptime     string       `json:"uptime"`
	Goroutines int          `json:"goroutines"`
	Memory     *memoryStats `json:"memory,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:     "ok",
		Service:    s.name,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Memory:     readMemory(c),
	})
}

// readMemory returns nil when the host does not expose memory statistics.
func readMemory(c *gin.Context) *memoryStats {
	ctx := c.Request.Context()
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		slog.Debug("memory statistics unavailable", "error", err)
		return nil
	}
	stats := &memoryStats{SystemTotal: vm.Total, SystemUsedPct: vm.UsedPercent}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSS = info.RSS
		}
	}
	return stats
}
