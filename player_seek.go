package avespeed

// Seek moves the playback position to the given frame, clamped to the
// media bounds. If the player is playing, the drivers are stopped before
// the clock changes and restarted afterwards.
func (p *Player) Seek(frame int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	p.noLockHandleEnd()
	p.noLockSeek(frame)
	return nil
}

// preconditions: p.mutex is locked, p.session != nil
func (p *Player) noLockSeek(frame int) {
	if p.state != Playing || p.seeking {
		p.session.clock.Set(frame)
		p.noLockShowFrame()
		return
	}

	// the video driver must not be advancing the clock while we set it
	p.noLockStopDrivers(p.tunings.SeekStopTimeout)
	p.session.clock.Set(frame)
	p.noLockShowFrame()
	p.noLockStartDrivers()
}

// Step moves the position by delta frames, pausing first if the player is
// playing. The position is clamped to the media bounds. It returns the new
// frame index.
func (p *Player) Step(delta int) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return 0
	}
	p.noLockHandleEnd()
	if p.state == Playing {
		p.noLockStopDrivers(p.tunings.StopTimeout)
		p.state = Paused
	}
	frame := p.session.clock.Step(delta)
	p.noLockShowFrame()
	return frame
}

// Skip seeks relative to the current position by the given amount of
// seconds, keeping the playback state. Negative values skip backwards.
func (p *Player) Skip(seconds float64) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	p.noLockHandleEnd()
	clock := p.session.clock
	delta := int(seconds * clock.FPS()) // truncated toward zero
	p.noLockSeek(clock.Get() + delta)
	return nil
}

// BeginSeek must be called when the user grabs the position slider. Both
// drivers are stopped while the slider is held, but a playing player keeps
// reporting [Playing] and resumes on [Player.EndSeek]().
func (p *Player) BeginSeek() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil || p.seeking {
		return
	}
	p.noLockHandleEnd()
	p.seeking = true
	p.noLockStopDrivers(p.tunings.SeekStopTimeout)
}

// DragTo previews the given frame while the slider is held. Outside of a
// [Player.BeginSeek]() / [Player.EndSeek]() pair it does nothing.
func (p *Player) DragTo(frame int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil || !p.seeking {
		return
	}
	p.session.clock.Set(frame)
	p.noLockShowFrame()
}

// EndSeek releases the slider at the given frame and resumes playback if
// the player was playing when the drag started.
func (p *Player) EndSeek(frame int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil || !p.seeking {
		return nil
	}
	p.seeking = false
	p.noLockSeek(frame)
	return nil
}

// Seeking reports whether the position slider is being held.
func (p *Player) Seeking() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.seeking
}
