package mysql

// request_id is unique; a retried write keeps the first row.
const insertSearchSQL = `
INSERT INTO search_log
  (request_id, lat, lng, radius_m, category, result_count, status, cached, duration_ms, summary, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE request_id = request_id
`

const recentSearchesSQL = `
SELECT request_id, lat, lng, radius_m, category, result_count, status, cached, duration_ms, summary, created_at
FROM search_log
ORDER BY created_at DESC, id DESC
LIMIT ?
`
