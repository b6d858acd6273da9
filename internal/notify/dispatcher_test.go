package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMulticast struct {
	calls [][]string
	fail  map[string]bool
	err   error
}

func (f *fakeMulticast) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, m.Tokens)
	resp := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if f.fail[tok] {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: errors.New("unregistered")})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "id-" + tok})
	}
	return resp, nil
}

func TestFCMDispatcherChunksAndCollectsFailures(t *testing.T) {
	tokens := make([]string, 1203)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	fake := &fakeMulticast{fail: map[string]bool{"tok-3": true, "tok-700": true}}
	d := &FCMDispatcher{client: fake, logger: slog.Default()}

	res, err := d.SendToDevices(context.Background(), tokens, Message{Title: "t", Body: "b"})
	require.NoError(t, err)

	require.Len(t, fake.calls, 3)
	assert.Len(t, fake.calls[0], 500)
	assert.Len(t, fake.calls[1], 500)
	assert.Len(t, fake.calls[2], 203)
	assert.Equal(t, 1201, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, []string{"tok-3", "tok-700"}, res.FailedTokens)
}

func TestFCMDispatcherTransportError(t *testing.T) {
	d := &FCMDispatcher{client: &fakeMulticast{err: errors.New("unavailable")}, logger: slog.Default()}
	_, err := d.SendToDevices(context.Background(), []string{"a"}, Message{})
	assert.ErrorContains(t, err, "unavailable")
}

func TestMulticastAttachesImage(t *testing.T) {
	m := multicast([]string{"a"}, Message{Title: "t", Body: "b", ImageURL: "https://img/x.jpg"})
	assert.Equal(t, "https://img/x.jpg", m.Notification.ImageURL)
	require.NotNil(t, m.APNS)
	assert.Equal(t, "https://img/x.jpg", m.APNS.FCMOptions.ImageURL)

	m = multicast([]string{"a"}, Message{Title: "t", Body: "b"})
	assert.Nil(t, m.APNS)
}
