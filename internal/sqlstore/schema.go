package sqlstore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lounge_documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  body TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_lounge_documents_seq ON lounge_documents(collection, seq);
`
