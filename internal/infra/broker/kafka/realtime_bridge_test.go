package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"autoparc/internal/realtime"
)

type recordedMessage struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeRecordPublisher struct {
	err  error
	msgs []recordedMessage
}

func (p *fakeRecordPublisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, recordedMessage{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

type memoryInbox map[string]bool

func (m memoryInbox) Seen(ctx context.Context, id string) (bool, error) {
	if m[id] {
		return true, nil
	}
	m[id] = true
	return false, nil
}

func toConsumerMessage(m recordedMessage) *sarama.ConsumerMessage {
	msg := &sarama.ConsumerMessage{Topic: m.topic, Key: []byte(m.key), Value: m.payload}
	for k, v := range m.headers {
		msg.Headers = append(msg.Headers, &sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return msg
}

func receive(t *testing.T, sub *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("expected an event")
	}
	return realtime.Event{}
}

func TestBridgeDeliversAcrossInstancesOnce(t *testing.T) {
	broker := &fakeRecordPublisher{}
	hubA := realtime.NewHub(nil)
	hubB := realtime.NewHub(nil)
	a := &RealtimeBridge{Local: hubA, Producer: broker, Topic: "autoparc.realtime", Origin: "a"}
	b := &RealtimeBridge{Local: hubB, Producer: broker, Topic: "autoparc.realtime", Origin: "b", Inbox: memoryInbox{}}

	subA := hubA.Subscribe(realtime.Filter{Table: realtime.TableMessages})
	subB := hubB.Subscribe(realtime.Filter{Table: realtime.TableMessages})
	defer subA.Close()
	defer subB.Close()

	ev := realtime.Event{Table: realtime.TableMessages, Type: realtime.Insert, Record: map[string]any{"chat_id": "c1"}}
	if err := a.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	local := receive(t, subA)
	if local.ID == "" {
		t.Fatalf("expected an id assigned before forwarding")
	}
	if len(broker.msgs) != 1 || broker.msgs[0].key != realtime.TableMessages {
		t.Fatalf("expected one forwarded record keyed by table, got %+v", broker.msgs)
	}

	msg := toConsumerMessage(broker.msgs[0])
	if err := a.Handle(context.Background(), msg); err != nil {
		t.Fatalf("own echo: %v", err)
	}
	if err := b.Handle(context.Background(), msg); err != nil {
		t.Fatalf("remote handle: %v", err)
	}
	if err := b.Handle(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	remote := receive(t, subB)
	if remote.ID != local.ID || remote.Record["chat_id"] != "c1" {
		t.Fatalf("expected same event on remote hub, got %+v", remote)
	}
	select {
	case extra := <-subB.Events():
		t.Fatalf("expected redelivery to be dropped, got %+v", extra)
	case extra := <-subA.Events():
		t.Fatalf("expected own echo to be ignored, got %+v", extra)
	default:
	}
}

func TestBridgeKeepsLocalDeliveryWhenBrokerFails(t *testing.T) {
	hub := realtime.NewHub(nil)
	bridge := &RealtimeBridge{Local: hub, Producer: &fakeRecordPublisher{err: errors.New("down")}, Topic: "t", Origin: "a"}
	sub := hub.Subscribe(realtime.Filter{Table: realtime.TableChats})
	defer sub.Close()

	if err := bridge.Publish(context.Background(), realtime.Event{Table: realtime.TableChats, Type: realtime.Update}); err != nil {
		t.Fatalf("expected broker failure to be absorbed, got %v", err)
	}
	receive(t, sub)
}

func TestBridgeSkipsUndecodableMessages(t *testing.T) {
	bridge := &RealtimeBridge{Local: realtime.NewHub(nil), Origin: "a"}
	if err := bridge.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}); err != nil {
		t.Fatalf("expected poison message to be skipped, got %v", err)
	}
}
