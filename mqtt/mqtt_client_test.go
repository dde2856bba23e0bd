package mqtt

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"
)

type recordingHandler struct {
	topic    string
	received []string
}

func (rh *recordingHandler) MqttHandle(pub *paho.Publish) {
	rh.received = append(rh.received, pub.Topic)
}

func (rh *recordingHandler) MqttSubscribeTopic() string {
	return rh.topic
}

func received(mc *MqttClient, topic string) bool {
	handled, _ := mc.onPublishRecv(paho.PublishReceived{Packet: &paho.Publish{Topic: topic}})
	return handled
}

func TestRoute(t *testing.T) {
	outputs := &recordingHandler{topic: "kit/output/+/set"}
	clearing := &recordingHandler{topic: "kit/clear"}
	everything := &recordingHandler{topic: "kit/#"}
	mc := &MqttClient{logger: log.New(io.Discard)}

	if received(mc, "kit/clear") {
		t.Error("message reported handled before handlers were set")
	}

	mc.setHandlers([]MqttHandler{outputs, clearing, everything})

	topics := []string{
		"kit/output/7/set",
		"kit/output/7/state",
		"kit/output/set",
		"kit/clear",
		"kit/clear/now",
		"other/clear",
	}
	for _, topic := range topics {
		received(mc, topic)
	}

	cases := []struct {
		name    string
		handler *recordingHandler
		want    []string
	}{
		{"single level wildcard", outputs, []string{"kit/output/7/set"}},
		{"exact", clearing, []string{"kit/clear"}},
		{"multi level wildcard", everything, topics[:5]},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.handler.received
			if len(got) != len(c.want) {
				t.Fatalf("got %v want %v", got, c.want)
			}
			for i := range c.want {
				if got[i] != c.want[i] {
					t.Errorf("message [%d] got %s want %s", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestPublishNotConnected(t *testing.T) {
	mc, err := NewMqttClient("mqtt://localhost:1883", "test")
	if err != nil {
		t.Fatalf("NewMqttClient returned err: %v", err)
	}

	if err = mc.Publish("kit/output/1/state", []byte("1")); err == nil {
		t.Error("got nil error publishing without connection")
	}
}
