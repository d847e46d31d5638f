package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"

	"github.com/seancallaway/modbot/internal/bot"
	"github.com/seancallaway/modbot/internal/tracker"
)

// metrics writes GET /metrics in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, _ *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families(h.b.Signals()) {
		if err := enc.Encode(mf); err != nil {
			log.Warn().Err(err).Str("family", mf.GetName()).Msg("api: encode metrics failed")
			return
		}
	}
}

// families builds one gauge or counter family per exported statistic, with a
// "signal" label per monitored signal.
func families(sigs []bot.SignalStatus) []*dto.MetricFamily {
	defs := []struct {
		name, help string
		typ        dto.MetricType
		value      func(bot.SignalStatus) float64
	}{
		{"modbot_last_alerted", "Count most recently alerted on, 0 when quiet.", dto.MetricType_GAUGE,
			func(s bot.SignalStatus) float64 { return float64(s.LastAlerted) }},
		{"modbot_alerted", "1 while the signal is in the alerted state.", dto.MetricType_GAUGE,
			func(s bot.SignalStatus) float64 {
				if s.State.State == tracker.StateAlerted {
					return 1
				}
				return 0
			}},
		{"modbot_last_count", "Count seen by the last successful check.", dto.MetricType_GAUGE,
			func(s bot.SignalStatus) float64 { return float64(s.LastCount) }},
		{"modbot_last_check_timestamp_seconds", "Unix time of the last successful check.", dto.MetricType_GAUGE,
			func(s bot.SignalStatus) float64 {
				if s.CheckedAt.IsZero() {
					return 0
				}
				return float64(s.CheckedAt.UnixNano()) / 1e9
			}},
		{"modbot_checks_total", "Checks started.", dto.MetricType_COUNTER,
			func(s bot.SignalStatus) float64 { return float64(s.Checks) }},
		{"modbot_check_failures_total", "Checks skipped because the source failed.", dto.MetricType_COUNTER,
			func(s bot.SignalStatus) float64 { return float64(s.Failures) }},
		{"modbot_alerts_total", "Alerts attempted.", dto.MetricType_COUNTER,
			func(s bot.SignalStatus) float64 { return float64(s.Alerts) }},
		{"modbot_delivery_failures_total", "Alerts the webhook did not accept.", dto.MetricType_COUNTER,
			func(s bot.SignalStatus) float64 { return float64(s.DeliveryFailures) }},
	}

	out := make([]*dto.MetricFamily, 0, len(defs))
	for _, d := range defs {
		mf := &dto.MetricFamily{
			Name: proto.String(d.name),
			Help: proto.String(d.help),
			Type: d.typ.Enum(),
		}
		for _, s := range sigs {
			m := &dto.Metric{
				Label: []*dto.LabelPair{{Name: proto.String("signal"), Value: proto.String(s.Name)}},
			}
			v := proto.Float64(d.value(s))
			if d.typ == dto.MetricType_COUNTER {
				m.Counter = &dto.Counter{Value: v}
			} else {
				m.Gauge = &dto.Gauge{Value: v}
			}
			mf.Metric = append(mf.Metric, m)
		}
		out = append(out, mf)
	}
	return out
}
