package callRepository

const (
	queryUpsertCallPreserve = `
		INSERT INTO calls (
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at
		) VALUES (
			:id, :external_id, :from_address, :to_address, :status,
			:stage, :slots, :last_utterance, :created_at, :updated_at
		)
		ON CONFLICT (external_id) DO UPDATE
		SET
			from_address = EXCLUDED.from_address,
			to_address = EXCLUDED.to_address,
			updated_at = EXCLUDED.updated_at
		RETURNING
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at,
			(xmax = 0) AS inserted
	`

	queryUpsertCallReset = `
		INSERT INTO calls (
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at
		) VALUES (
			:id, :external_id, :from_address, :to_address, :status,
			:stage, :slots, :last_utterance, :created_at, :updated_at
		)
		ON CONFLICT (external_id) DO UPDATE
		SET
			from_address = EXCLUDED.from_address,
			to_address = EXCLUDED.to_address,
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			slots = EXCLUDED.slots,
			updated_at = EXCLUDED.updated_at
		RETURNING
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at,
			(xmax = 0) AS inserted
	`

	queryCreateCall = `
		INSERT INTO calls (
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at
		) VALUES (
			:id, :external_id, :from_address, :to_address, :status,
			:stage, :slots, :last_utterance, :created_at, :updated_at
		)
	`

	queryEnsureCall = queryCreateCall + `
		ON CONFLICT (external_id) DO NOTHING
	`

	queryGetCallByIDForUpdate = `
		SELECT
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at
		FROM calls
		WHERE id = :id
		FOR UPDATE
	`

	queryGetCallByExternalIDForUpdate = `
		SELECT
			id, external_id, from_address, to_address, status,
			stage, slots, last_utterance, created_at, updated_at
		FROM calls
		WHERE external_id = :external_id
		FOR UPDATE
	`

	queryUpdateCall = `
		UPDATE calls
		SET
			stage = :stage,
			slots = :slots,
			last_utterance = :last_utterance,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryMarkCallBooking = `
		UPDATE calls
		SET
			status = 'booking',
			updated_at = :updated_at
		WHERE id = :id
		AND status IN ('initiated', 'in_dialog')
	`
)
