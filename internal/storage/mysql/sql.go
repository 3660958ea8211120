package mysql

const upsertSessionSQL = `
INSERT INTO sessions (id)
VALUES (?)
ON DUPLICATE KEY UPDATE last_seen_at = CURRENT_TIMESTAMP
`

const insertMessageSQL = `
INSERT INTO messages (session_id, role, content)
VALUES (?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Newest N rows for the session, re-ordered oldest-first so the caller gets
// a chronological window ending at the latest message.
const historySQL = `
SELECT role, content
FROM (
  SELECT id, role, content
  FROM messages
  WHERE session_id = ?
  ORDER BY id DESC
  LIMIT ?
) m
ORDER BY m.id ASC
`
