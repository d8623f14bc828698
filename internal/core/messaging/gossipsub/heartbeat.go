package gossipsub

// heartbeatLoop 首次延迟 HeartbeatInitialDelay，之后每 HeartbeatInterval 执行一次心跳
func (r *Router) heartbeatLoop() {
	defer r.wg.Done()

	select {
	case <-r.ctx.Done():
		return
	case <-r.clock.After(r.cfg.HeartbeatInitialDelay):
	}

	ticker := r.clock.Ticker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		r.heartbeat()

		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// heartbeat 维护 mesh 与 fanout、发送 gossip，并滑动消息缓存窗口
func (r *Router) heartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	batch := make(controlBatch)
	for topic, mesh := range r.mesh {
		r.maintainMesh(topic, mesh, batch)
		r.emitGossip(topic, mesh, batch)
	}
	for topic, fan := range r.fanout {
		if r.maintainFanout(topic, fan) {
			r.emitGossip(topic, fan, batch)
		}
	}

	for p, ctrl := range batch {
		r.enqueue(p, &RPC{Control: ctrl})
	}
	r.mcache.Shift()
}
