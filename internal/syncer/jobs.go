package syncer

import "context"

type pushJob struct {
	c      *Coordinator
	reason string
}

func (j *pushJob) Name() string { return "push:" + j.reason }

func (j *pushJob) Run(ctx context.Context) error {
	return j.c.push(ctx, j.reason)
}

type reconcileJob struct {
	c      *Coordinator
	reason string
}

func (j *reconcileJob) Name() string { return "reconcile:" + j.reason }

func (j *reconcileJob) Run(ctx context.Context) error {
	return j.c.Reconcile(ctx, j.reason)
}

type reconnectJob struct {
	c *Coordinator
}

func (j *reconnectJob) Name() string { return ReasonReconnect }

func (j *reconnectJob) Run(ctx context.Context) error {
	return j.c.reconnect(ctx)
}
