package bookingRepository

// calendarLockKey is the advisory lock guarding the single shared calendar.
const calendarLockKey = 7201

const (
	queryLockCalendar = `SELECT pg_advisory_xact_lock(:key)`

	queryCreateBooking = `
		INSERT INTO bookings (
			id,
			call_id,
			start_ts,
			end_ts,
			status,
			provider,
			metadata,
			created_at
		) VALUES (
			:id,
			:call_id,
			:start_ts,
			:end_ts,
			:status,
			:provider,
			:metadata,
			:created_at
		)`

	queryGetConfirmedByCall = `
		SELECT id, call_id, start_ts, end_ts, status, provider, metadata, created_at
		FROM bookings
		WHERE call_id = :call_id AND status = 'confirmed'
		LIMIT 1`

	queryListConfirmedOverlapping = `
		SELECT id, call_id, start_ts, end_ts, status, provider, metadata, created_at
		FROM bookings
		WHERE status = 'confirmed'
			AND start_ts < :end_ts
			AND end_ts > :start_ts
		ORDER BY start_ts`

	queryGetCallByID = `
		SELECT id, external_id, from_address, to_address, status, stage, slots, last_utterance, created_at, updated_at
		FROM calls
		WHERE id = :id
		FOR UPDATE`

	queryFinishCall = `
		UPDATE calls
		SET status = :status, stage = 'done', updated_at = :updated_at
		WHERE id = :id`
)
