package policies

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/zeu5/deep-traffic/core"
)

var (
	ErrRemotePolicy = errors.New("remote policy failed")
)

const (
	messageForward  = "forward"
	messageBackward = "backward"
)

type policyRequest struct {
	Type        string           `json:"type"`
	Observation core.Observation `json:"observation,omitempty"`
	Reward      float64          `json:"reward,omitempty"`
}

type policyResponse struct {
	Action *int   `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RemotePolicy forwards both calls to a policy hosted by ServePolicy.
// Once a call fails every Forward returns -1, which environments treat as
// an unknown action, and Err reports the failure.
type RemotePolicy struct {
	conn    *websocket.Conn
	timeout time.Duration

	mtx sync.Mutex
	err error
}

var _ core.Policy = &RemotePolicy{}

func DialRemotePolicy(ctx context.Context, url string, timeout time.Duration) (*RemotePolicy, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrRemotePolicy, url, err)
	}
	return &RemotePolicy{
		conn:    conn,
		timeout: timeout,
	}, nil
}

func (r *RemotePolicy) call(req policyRequest) (policyResponse, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return policyResponse{}, r.err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var resp policyResponse
	err := wsjson.Write(ctx, r.conn, req)
	if err == nil {
		err = wsjson.Read(ctx, r.conn, &resp)
	}
	if err == nil && resp.Error != "" {
		err = errors.New(resp.Error)
	}
	if err != nil {
		r.err = fmt.Errorf("%w: %s: %w", ErrRemotePolicy, req.Type, err)
		return resp, r.err
	}
	return resp, nil
}

func (r *RemotePolicy) Forward(o core.Observation) int {
	resp, err := r.call(policyRequest{Type: messageForward, Observation: o})
	if err != nil || resp.Action == nil {
		return -1
	}
	return *resp.Action
}

func (r *RemotePolicy) Backward(reward float64) {
	r.call(policyRequest{Type: messageBackward, Reward: reward})
}

func (r *RemotePolicy) Err() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.err
}

func (r *RemotePolicy) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "")
}

// ServePolicy hosts policies over websocket. Every connection drives its
// own policy built by constructor.
func ServePolicy(constructor core.PolicyConstructor, numStates, numActions int, logger *logrus.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket accept failed")
			return
		}
		defer conn.CloseNow()

		policy, err := constructor.NewPolicy(numStates, numActions)
		if err != nil {
			logger.WithError(err).Error("could not build policy")
			conn.Close(websocket.StatusInternalError, "policy unavailable")
			return
		}
		agent, err := core.NewAgent(policy)
		if err != nil {
			logger.WithError(err).Error("could not bind policy")
			conn.Close(websocket.StatusInternalError, "policy unavailable")
			return
		}

		l := logger.WithField("remote", req.RemoteAddr)
		l.Info("policy session started")
		if err := servePolicySession(req.Context(), conn, agent); err != nil {
			l.WithError(err).Warn("policy session ended")
			return
		}
		l.Info("policy session closed")
	})
}

func servePolicySession(ctx context.Context, conn *websocket.Conn, agent *core.Agent) error {
	for {
		var req policyRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}

		var resp policyResponse
		switch req.Type {
		case messageForward:
			action := agent.Forward(req.Observation)
			resp.Action = &action
		case messageBackward:
			agent.Backward(req.Reward)
		default:
			resp.Error = fmt.Sprintf("unknown message type %q", req.Type)
		}
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return err
		}
	}
}
