// Package metrics provides Prometheus metrics for stream units and their
// destinations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unitStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "status",
		Help:      "Unit lifecycle status (0=inactive 1=starting 2=active 3=stopping 4=error 5=preview)",
	}, []string{"unit_id"})

	unitFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "fps",
		Help:      "Current encoding FPS reported by the engine",
	}, []string{"unit_id"})

	unitBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "bitrate_kbit",
		Help:      "Current outbound bitrate in kbit/s",
	}, []string{"unit_id"})

	unitBytesSent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "bytes_sent_total",
		Help:      "Total bytes sent by the unit's process",
	}, []string{"unit_id"})

	unitFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "frames_total",
		Help:      "Total frames processed by the unit's process",
	}, []string{"unit_id"})

	unitDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multistream",
		Subsystem: "unit",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"unit_id"})

	// Local cache for SSE exporter access.
	unitCache   = make(map[string]*UnitMetrics)
	unitCacheMu sync.RWMutex
)

// UnitMetrics holds current metric values for a unit.
type UnitMetrics struct {
	Status        string
	FPS           float64
	BitrateKbit   float64
	BytesSent     uint64
	Frames        uint64
	DroppedFrames uint64
}

func statusValue(status string) float64 {
	switch status {
	case "starting":
		return 1
	case "active":
		return 2
	case "stopping":
		return 3
	case "error":
		return 4
	case "preview":
		return 5
	default:
		return 0
	}
}

// SetUnitStatus records a unit's lifecycle status.
func SetUnitStatus(unitID, status string) {
	unitStatus.WithLabelValues(unitID).Set(statusValue(status))
	updateUnitCache(unitID, func(m *UnitMetrics) { m.Status = status })
}

// UpdateUnitProgress records a progress snapshot for a unit.
func UpdateUnitProgress(unitID string, fps, bitrateKbit float64, bytesSent, frames, droppedFrames uint64) {
	unitFPS.WithLabelValues(unitID).Set(fps)
	unitBitrate.WithLabelValues(unitID).Set(bitrateKbit)
	unitBytesSent.WithLabelValues(unitID).Set(float64(bytesSent))
	unitFrames.WithLabelValues(unitID).Set(float64(frames))
	unitDroppedFrames.WithLabelValues(unitID).Set(float64(droppedFrames))

	updateUnitCache(unitID, func(m *UnitMetrics) {
		m.FPS = fps
		m.BitrateKbit = bitrateKbit
		m.BytesSent = bytesSent
		m.Frames = frames
		m.DroppedFrames = droppedFrames
	})
}

// DeleteUnitMetrics removes all metrics for a unit, including its
// destination series.
func DeleteUnitMetrics(unitID string) {
	unitStatus.DeleteLabelValues(unitID)
	unitFPS.DeleteLabelValues(unitID)
	unitBitrate.DeleteLabelValues(unitID)
	unitBytesSent.DeleteLabelValues(unitID)
	unitFrames.DeleteLabelValues(unitID)
	unitDroppedFrames.DeleteLabelValues(unitID)

	deleteDestinationSeries(unitID)

	unitCacheMu.Lock()
	delete(unitCache, unitID)
	unitCacheMu.Unlock()
}

// GetUnitMetrics returns current metric values for a unit.
func GetUnitMetrics(unitID string) *UnitMetrics {
	unitCacheMu.RLock()
	defer unitCacheMu.RUnlock()
	if m, ok := unitCache[unitID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllUnitMetrics returns metrics for all known units.
func GetAllUnitMetrics() map[string]*UnitMetrics {
	unitCacheMu.RLock()
	defer unitCacheMu.RUnlock()
	result := make(map[string]*UnitMetrics, len(unitCache))
	for id, m := range unitCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateUnitCache(unitID string, update func(*UnitMetrics)) {
	unitCacheMu.Lock()
	defer unitCacheMu.Unlock()
	m, ok := unitCache[unitID]
	if !ok {
		m = &UnitMetrics{}
		unitCache[unitID] = m
	}
	update(m)
}
