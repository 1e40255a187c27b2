package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CONTACT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS contact SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS phone ON contact TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON contact TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS summary ON contact TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON contact TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON contact TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS contact_phone ON contact FIELDS phone UNIQUE;

    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    -- status is the kill-switch for automated processing: only "automated"
    -- conversations are handled by the core. Reset from "human" happens via an
    -- operator action, never through the conversational path.
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS contact ON conversation TYPE record<contact>;
    DEFINE FIELD IF NOT EXISTS status ON conversation TYPE string
        ASSERT $value IN ["automated", "human", "closed"] DEFAULT "automated";
    DEFINE FIELD IF NOT EXISTS last_intent ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS turn_count ON conversation TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS collection ON conversation FLEXIBLE TYPE option<object>;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_contact ON conversation FIELDS contact;
    DEFINE INDEX IF NOT EXISTS conversation_status ON conversation FIELDS status;

    -- ==========================================================================
    -- MESSAGE TABLE (transcript)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON message TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string
        ASSERT $value IN ["user", "assistant", "reception", "agenda"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS intent ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation;

    -- ==========================================================================
    -- APPOINTMENT TABLE
    -- ==========================================================================
    -- Unique index on (contact, scheduled_at) backs the "never created twice
    -- for the same date/time/contact" invariant at the storage level.
    DEFINE TABLE IF NOT EXISTS appointment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS contact ON appointment TYPE record<contact>;
    DEFINE FIELD IF NOT EXISTS subject ON appointment TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON appointment TYPE string
        ASSERT $value IN ["self-pay", "insurance"];
    DEFINE FIELD IF NOT EXISTS scheduled_at ON appointment TYPE datetime;
    DEFINE FIELD IF NOT EXISTS calendar_event_id ON appointment TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON appointment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS appointment_contact ON appointment FIELDS contact;
    DEFINE INDEX IF NOT EXISTS appointment_slot ON appointment FIELDS contact, scheduled_at UNIQUE;

    -- ==========================================================================
    -- FULFILLMENT TABLE (idempotency ledger)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS fulfillment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS key ON fulfillment TYPE string;
    DEFINE FIELD IF NOT EXISTS operation ON fulfillment TYPE string;
    DEFINE FIELD IF NOT EXISTS response ON fulfillment TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON fulfillment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS fulfillment_key ON fulfillment FIELDS key UNIQUE;

    -- ==========================================================================
    -- INCIDENT TABLE (protocol violations, for operator review)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS incident SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON incident TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS detail ON incident TYPE string;
    DEFINE FIELD IF NOT EXISTS raw ON incident TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON incident TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS incident_conversation ON incident FIELDS conversation;
`
