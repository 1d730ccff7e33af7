package storage

const schema = `
-- One row per card. Timestamps are fixed-width RFC 3339 text in UTC.
CREATE TABLE IF NOT EXISTS card_states (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    repetitions INTEGER NOT NULL DEFAULT 0,
    interval_days INTEGER NOT NULL DEFAULT 0,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    last_reviewed TEXT,
    next_review TEXT NOT NULL,
    grade TEXT -- Again, Hard, Good, Easy; NULL until the first review
);

CREATE INDEX IF NOT EXISTS idx_card_states_next_review ON card_states(next_review);
`
