package gateway

import (
	"log/slog"
	"strconv"
	"time"
)

// buildEnvelope hand-crafts {"channel":...,"data":...,"ts":...,"seq":N}.
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// Broadcast wraps data in an envelope and sends it to every client
// subscribed to channel. Slow clients whose buffer is full miss the message
// and can recover it through last_seq on reconnect.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := h.now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	buf := buildEnvelope(channel, data, now, seq)
	h.latest[channel] = latestEntry{Envelope: buf, Seq: seq}
	h.mu.Unlock()

	h.replay.Push(seq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			slog.Debug("ws client buffer full, dropping", "channel", channel, "seq", seq)
		}
	}
}
