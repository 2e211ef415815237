package store

const (
	SaveTestimonyQuery = `
		MERGE (t:Testimony {id: $id})
		SET t.owner_id = $owner_id,
			t.title = $title,
			t.description = $description,
			t.full_testimony = $full_testimony,
			t.transcript = $transcript,
			t.summary = $summary,
			t.key_phrases = $key_phrases,
			t.submission_kind = $submission_kind,
			t.media_url = $media_url,
			t.media_duration_sec = $media_duration_sec,
			t.media_content_hash = $media_content_hash,
			t.status = $status,
			t.is_published = $is_published,
			t.transcription_status = $transcription_status,
			t.transcription_error = $transcription_error,
			t.transcription_attempts = $transcription_attempts,
			t.embedding_status = $embedding_status,
			t.embedding_error = $embedding_error,
			t.relation_to_event = $relation_to_event,
			t.events_json = $events_json,
			t.locations_json = $locations_json,
			t.relatives_json = $relatives_json,
			t.event_date_from = $event_date_from,
			t.event_date_to = $event_date_to,
			t.created_at = $created_at
		RETURN t.id AS id
	`

	testimonyReturn = `
		RETURN t.id AS id, t.owner_id AS owner_id, t.title AS title,
			t.description AS description, t.full_testimony AS full_testimony,
			t.transcript AS transcript, t.summary AS summary,
			t.key_phrases AS key_phrases, t.submission_kind AS submission_kind,
			t.media_url AS media_url, t.media_duration_sec AS media_duration_sec,
			t.media_content_hash AS media_content_hash, t.status AS status,
			t.is_published AS is_published,
			t.transcription_status AS transcription_status,
			t.transcription_error AS transcription_error,
			t.transcription_attempts AS transcription_attempts,
			t.embedding_status AS embedding_status,
			t.embedding_error AS embedding_error,
			t.relation_to_event AS relation_to_event,
			t.events_json AS events_json, t.locations_json AS locations_json,
			t.relatives_json AS relatives_json,
			t.event_date_from AS event_date_from, t.event_date_to AS event_date_to,
			t.created_at AS created_at
	`

	GetTestimonyQuery = `MATCH (t:Testimony {id: $id})` + testimonyReturn

	ListCandidatesQuery = `
		MATCH (t:Testimony)
		WHERE t.id <> $exclude_id AND t.status = 'approved' AND t.is_published = true
	` + testimonyReturn

	ListNeedingProcessingQuery = `
		MATCH (t:Testimony)
		WHERE (t.submission_kind IN ['audio', 'video']
				AND t.transcription_status IN ['none', 'pending'])
			OR t.embedding_status IN ['none', 'pending']
		RETURN t.id AS id
		LIMIT $limit
	`

	ResetFailedTranscriptionsQuery = `
		MATCH (t:Testimony)
		WHERE t.transcription_status = 'failed' AND t.transcription_attempts < $max_attempts
		SET t.transcription_status = 'pending', t.transcription_error = ''
		RETURN t.id AS id
	`

	UpdateTranscriptionQuery = `
		MATCH (t:Testimony {id: $id})
		SET t.transcription_status = $status,
			t.transcript = $transcript,
			t.transcription_error = $error,
			t.transcription_attempts = $attempts,
			t.media_content_hash = $content_hash
		RETURN t.id AS id
	`

	UpdateEmbeddingStatusQuery = `
		MATCH (t:Testimony {id: $id})
		SET t.embedding_status = $status, t.embedding_error = $error
		RETURN t.id AS id
	`

	UpdateDerivedQuery = `
		MATCH (t:Testimony {id: $id})
		SET t.summary = $summary, t.key_phrases = $key_phrases
		RETURN t.id AS id
	`

	// ReplaceEmbeddingsQuery deletes a testimony's rows for one model and
	// recreates them in the same statement, so the swap is atomic.
	ReplaceEmbeddingsQuery = `
		MATCH (t:Testimony {id: $id})
		OPTIONAL MATCH (t)-[:HAS_EMBEDDING]->(old:Embedding {model: $model})
		DETACH DELETE old
		WITH DISTINCT t
		UNWIND $rows AS row
		CREATE (e:Embedding {testimony_id: $id, section: row.section, model: $model, vector: row.vector})
		CREATE (t)-[:HAS_EMBEDDING]->(e)
		RETURN count(e) AS created
	`

	GetEmbeddingsQuery = `
		MATCH (t:Testimony {id: $id})-[:HAS_EMBEDDING]->(e:Embedding)
		RETURN e.testimony_id AS testimony_id, e.section AS section,
			e.model AS model, e.vector AS vector
	`

	connectionReturn = `
		RETURN a.id AS from_id, b.id AS to_id, c.uuid AS uuid, c.type AS type,
			c.score AS score, c.source AS source, c.rating AS rating,
			c.created_at AS created_at
	`

	ListTouchingConnectionsQuery = `
		MATCH (a:Testimony)-[c:CONNECTED]->(b:Testimony)
		WHERE a.id = $id OR b.id = $id
	` + connectionReturn

	ListConnectionsFromQuery = `
		MATCH (a:Testimony {id: $id})-[c:CONNECTED]->(b:Testimony)
	` + connectionReturn

	DeleteUnratedTouchingQuery = `
		MATCH (a:Testimony {id: $id})-[c:CONNECTED]-(:Testimony)
		WHERE c.rating IS NULL
		DELETE c
	`

	// UpsertConnectionQuery is idempotent per directed pair: concurrent
	// discovery runs converge on last-writer-wins instead of conflicting.
	UpsertConnectionQuery = `
		MATCH (a:Testimony {id: $from_id})
		MATCH (b:Testimony {id: $to_id})
		MERGE (a)-[c:CONNECTED]->(b)
		ON CREATE SET c.uuid = $uuid, c.created_at = $created_at
		SET c.type = $type, c.score = $score, c.source = $source
		RETURN c.uuid AS uuid
	`

	UpdateConnectionPairQuery = `
		MATCH (a:Testimony {id: $from_id})-[c:CONNECTED]->(b:Testimony {id: $to_id})
		SET c.type = $type, c.score = $score, c.source = $source
		RETURN c.uuid AS uuid
	`

	RateConnectionQuery = `
		MATCH (a:Testimony {id: $from_id})-[c:CONNECTED]->(b:Testimony {id: $to_id})
		SET c.rating = $rating
		RETURN c.uuid AS uuid
	`

	ConnectionTypeStatsQuery = `
		MATCH (:Testimony)-[c:CONNECTED]->(:Testimony)
		RETURN c.type AS type, count(c) AS edge_count, avg(c.score) AS avg_score,
			avg(c.rating) AS avg_rating, count(c.rating) AS rating_count
	`
)
