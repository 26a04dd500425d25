package scriptrunner

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
)

// HandleMessage answers one browser-to-renderer process message.
// RunJavascript requests yield a RunJavascriptResponse; other kinds are
// rejected.
func (r *Runtime) HandleMessage(ctx context.Context, msg *procmsg.ProcessMessage) (*procmsg.ProcessMessage, error) {
	decoded, err := procmsg.Decode(msg)
	if err != nil {
		return nil, err
	}

	req, ok := decoded.(procmsg.RunJavascript)
	if !ok {
		return nil, fmt.Errorf("%w: renderer does not handle %s", procmsg.ErrUnknownKind, decoded.Kind())
	}

	resp := r.Execute(ctx, req.RunID, req.Script)
	return procmsg.Encode(resp), nil
}
