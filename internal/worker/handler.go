package worker

import (
	"context"
	"encoding/json"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
)

type replyPayload struct {
	JobIDs []string                `json:"job_ids"`
	Jobs   []*models.JobStatusView `json:"jobs,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *Message) {
	reply := &replyPayload{JobIDs: []string{}}
	defer w.respond(msg, reply)

	n, err := models.ParseNotification(msg.Data)
	if err != nil {
		w.logger.Errorf("handleMessage - ParseNotification error: %v", err)
		reply.Error = err.Error()
		return
	}

	views, err := w.uc.HandleNotification(ctx, n)
	for _, v := range views {
		reply.JobIDs = append(reply.JobIDs, v.JobID)
		w.logger.Infof("handleMessage - job %s is %s", v.JobID, v.Status)
	}
	reply.Jobs = views
	if err != nil {
		w.logger.Errorf("handleMessage - HandleNotification error: %v", err)
		reply.Error = err.Error()
	}
}

func (w *Worker) respond(msg *Message, reply *replyPayload) {
	if msg.Reply == nil {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		w.logger.Errorf("respond - Marshal error: %v", err)
		return
	}
	if err := msg.Reply(data); err != nil {
		w.logger.Errorf("respond - Reply error: %v", err)
	}
}
