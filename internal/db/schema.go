package db

// SchemaSQL contains the chat schema initialization SQL.
// Conversation record ids are the resolved conversation keys, so the
// store's per-record serialization makes create-if-absent race-free.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS participants ON conversation TYPE array<string>
        ASSERT array::len($value) == 2;
    DEFINE FIELD IF NOT EXISTS product ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_participants ON conversation FIELDS participants;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON message TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS sender ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS text ON message TYPE string
        ASSERT string::len(string::trim($value)) > 0;
    -- Correlation token generated by the sending client, echoed back through
    -- live notifications so optimistic sends reconcile exactly.
    DEFINE FIELD IF NOT EXISTS client_token ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS sent_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation;
    DEFINE INDEX IF NOT EXISTS message_sent_at ON message FIELDS sent_at;
`
