package postgres

const insertTaskSQL = `
INSERT INTO tasks (
  id, title, description, priority, status,
  created_at, started_at, finished_at, result, error
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`

const getTaskSQL = `
SELECT id, title, description, priority, status,
       created_at, started_at, finished_at, result, error
FROM tasks WHERE id = $1
`

// Conditional transitions. Each statement matches both id and the expected
// current status; zero affected rows means the precondition did not hold.

const transitionToPendingSQL = `
UPDATE tasks SET status = 'PENDING'
WHERE id = $1 AND status = 'NEW'
`

const claimTaskSQL = `
UPDATE tasks SET status = 'IN_PROGRESS', started_at = $2
WHERE id = $1 AND status = 'PENDING'
`

const completeTaskSQL = `
UPDATE tasks SET status = 'COMPLETED', result = $2, error = NULL, finished_at = $3
WHERE id = $1 AND status = 'IN_PROGRESS'
`

const failTaskSQL = `
UPDATE tasks SET status = 'FAILED', error = $2, finished_at = $3
WHERE id = $1 AND status = 'IN_PROGRESS'
`

const cancelTaskSQL = `
UPDATE tasks SET status = 'CANCELLED', finished_at = $2
WHERE id = $1 AND status IN ('NEW', 'PENDING')
`
