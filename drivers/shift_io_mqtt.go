package drivers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/mqtt"
)

const defaultMqttPrefix = "shiftkit"

func parseSwitchPayload(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, errors.Errorf("unrecognized switch payload %q", payload)
}

func formatSwitchPayload(state bool) []byte {
	if state {
		return []byte("1")
	}
	return []byte("0")
}

// outputSetHandler handles <prefix>/output/<pin>/set.
type outputSetHandler struct {
	prefix string
	io     *ShiftIO
}

func (h *outputSetHandler) MqttSubscribeTopic() string {
	return h.prefix + "/output/+/set"
}

func (h *outputSetHandler) MqttHandle(pub *paho.Publish) {
	levels := strings.Split(strings.TrimPrefix(pub.Topic, h.prefix+"/"), "/")
	if len(levels) != 3 {
		h.io.logger.Warn("unexpected mqtt topic", "topic", pub.Topic)
		return
	}

	pin, err := strconv.ParseUint(levels[1], 10, 16)
	if err != nil {
		h.io.logger.Warn("invalid pin in mqtt topic", "topic", pub.Topic, "err", err)
		return
	}
	state, err := parseSwitchPayload(pub.Payload)
	if err != nil {
		h.io.logger.Warn("invalid mqtt payload", "topic", pub.Topic, "err", err)
		return
	}

	output, err := h.io.GetOutput(uint16(pin))
	if err != nil {
		h.io.logger.Warn("mqtt set for unknown output", "pin", pin, "err", err)
		return
	}
	if err = output.Set(state); err != nil {
		h.io.logger.Error("failed to set output from mqtt", "pin", pin, "err", err)
	}
}

// clearHandler handles <prefix>/clear, payload ignored.
type clearHandler struct {
	prefix string
	io     *ShiftIO
}

func (h *clearHandler) MqttSubscribeTopic() string {
	return h.prefix + "/clear"
}

func (h *clearHandler) MqttHandle(pub *paho.Publish) {
	if err := h.io.Clear(); err != nil {
		h.io.logger.Error("failed to clear chain from mqtt", "err", err)
	}
}

// statePublisher publishes every change to <prefix>/output/<pin>/state.
type statePublisher struct {
	prefix    string
	publisher mqtt.Publisher
	io        *ShiftIO
}

func (sp *statePublisher) OutputChanged(pin uint16, state bool) {
	topic := fmt.Sprintf("%s/output/%d/state", sp.prefix, pin)
	if err := sp.publisher.Publish(topic, formatSwitchPayload(state)); err != nil {
		sp.io.logger.Error("failed to publish output state", "topic", topic, "err", err)
	}
}

func (sio *ShiftIO) SetMqtt(publisher mqtt.Publisher, prefix string) []mqtt.MqttHandler {
	if len(prefix) == 0 {
		prefix = defaultMqttPrefix
	}
	prefix = strings.TrimSuffix(prefix, "/")

	sio.Subscribe(&statePublisher{prefix: prefix, publisher: publisher, io: sio})

	return []mqtt.MqttHandler{
		&outputSetHandler{prefix: prefix, io: sio},
		&clearHandler{prefix: prefix, io: sio},
	}
}
