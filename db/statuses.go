package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

// Statuses queries
const (
	sqlInsertStatus = `INSERT INTO statuses(id, uri, url, account_id, local, text, language, spoiler_text, sensitive, visibility, in_reply_to_id, in_reply_to_uri, conversation_id, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectStatusColumns = `SELECT id, uri, url, account_id, local, text, language, spoiler_text, sensitive, visibility, in_reply_to_id, in_reply_to_uri, conversation_id, created_at FROM statuses`
	sqlSelectStatusByURI   = sqlSelectStatusColumns + ` WHERE uri = ?`
	sqlSelectStatusById    = sqlSelectStatusColumns + ` WHERE id = ?`
	sqlSelectRecentPublic  = sqlSelectStatusColumns + ` WHERE visibility = 'public' ORDER BY created_at DESC LIMIT ?`
	sqlUpdateStatusThread  = `UPDATE statuses SET in_reply_to_id = ? WHERE id = ?`

	sqlInsertTag       = `INSERT INTO tags(id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`
	sqlSelectTagByName = `SELECT id FROM tags WHERE name = ?`
	sqlInsertStatusTag = `INSERT OR IGNORE INTO status_tags(status_id, tag_id) VALUES (?, ?)`

	sqlInsertMention = `INSERT OR IGNORE INTO mentions(id, status_id, account_id, created_at) VALUES (?, ?, ?, ?)`

	sqlUpsertCustomEmoji = `INSERT INTO custom_emojis(id, shortcode, domain, image_remote_url, image_path, uri, updated_at, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?)
						ON CONFLICT(shortcode, domain) DO UPDATE SET
							image_remote_url = excluded.image_remote_url,
							uri = excluded.uri,
							updated_at = excluded.updated_at,
							image_path = ''`
	sqlSelectCustomEmoji = `SELECT id, shortcode, domain, image_remote_url, image_path, uri, updated_at, created_at FROM custom_emojis WHERE shortcode = ? AND domain = ?`
	sqlUpdateEmojiImage  = `UPDATE custom_emojis SET image_path = ? WHERE id = ?`

	sqlLinkMediaAttachment = `UPDATE media_attachments SET status_id = ? WHERE id = ? AND status_id IS NULL`
)

// CreateStatus persists a federated status together with its tag, mention,
// emoji and attachment associations in a single transaction. Either all of
// it becomes visible or none of it does.
func (db *DB) CreateStatus(status *domain.Status, tagNames []string, mentions []*domain.Mention, emojis []*domain.CustomEmoji, attachmentIds []uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertStatus,
			status.Id.String(),
			status.URI,
			status.URL,
			status.AccountId.String(),
			status.Local,
			status.Text,
			status.Language,
			status.SpoilerText,
			status.Sensitive,
			string(status.Visibility),
			uuidPtrToAny(status.InReplyToId),
			status.InReplyToURI,
			uuidPtrToAny(status.ConversationId),
			status.CreatedAt,
		)
		if err != nil {
			return err
		}

		for _, name := range tagNames {
			tagId, err := getOrCreateTag(tx, name)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(sqlInsertStatusTag, status.Id.String(), tagId); err != nil {
				return err
			}
		}

		for _, mention := range mentions {
			_, err := tx.Exec(sqlInsertMention, mention.Id.String(), status.Id.String(), mention.AccountId.String(), mention.CreatedAt)
			if err != nil {
				return err
			}
		}

		for _, emoji := range emojis {
			_, err := tx.Exec(sqlUpsertCustomEmoji,
				emoji.Id.String(),
				emoji.Shortcode,
				emoji.Domain,
				emoji.ImageRemoteURL,
				emoji.ImagePath,
				emoji.URI,
				emoji.UpdatedAt,
				emoji.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		for _, attachmentId := range attachmentIds {
			if _, err := tx.Exec(sqlLinkMediaAttachment, status.Id.String(), attachmentId.String()); err != nil {
				return err
			}
		}

		return nil
	})
}

func getOrCreateTag(tx *sql.Tx, name string) (string, error) {
	if _, err := tx.Exec(sqlInsertTag, uuid.New().String(), name, time.Now()); err != nil {
		return "", err
	}
	var tagId string
	if err := tx.QueryRow(sqlSelectTagByName, name).Scan(&tagId); err != nil {
		return "", err
	}
	return tagId, nil
}

func (db *DB) ReadStatusByURI(uri string) (error, *domain.Status) {
	return scanStatus(db.db.QueryRow(sqlSelectStatusByURI, uri))
}

func (db *DB) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	return scanStatus(db.db.QueryRow(sqlSelectStatusById, id.String()))
}

// UpdateStatusThread links a status to its now-resolved reply parent.
func (db *DB) UpdateStatusThread(id uuid.UUID, inReplyToId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateStatusThread, inReplyToId.String(), id.String())
		return err
	})
}

func (db *DB) ReadRecentPublicStatuses(limit int) (error, *[]domain.Status) {
	rows, err := db.db.Query(sqlSelectRecentPublic, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var statuses []domain.Status
	for rows.Next() {
		err, status := scanStatusRow(rows)
		if err != nil {
			return err, &statuses
		}
		statuses = append(statuses, *status)
	}
	if err = rows.Err(); err != nil {
		return err, &statuses
	}
	return nil, &statuses
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row *sql.Row) (error, *domain.Status) {
	return scanStatusRow(row)
}

func scanStatusRow(row rowScanner) (error, *domain.Status) {
	var status domain.Status
	var idStr, accountIdStr, createdAtStr string
	var url, text, language, spoilerText, inReplyToId, inReplyToURI, conversationId sql.NullString
	var visibility string
	err := row.Scan(
		&idStr,
		&status.URI,
		&url,
		&accountIdStr,
		&status.Local,
		&text,
		&language,
		&spoilerText,
		&status.Sensitive,
		&visibility,
		&inReplyToId,
		&inReplyToURI,
		&conversationId,
		&createdAtStr,
	)
	if err != nil {
		return err, nil
	}
	if status.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	if status.AccountId, err = uuid.Parse(accountIdStr); err != nil {
		return err, nil
	}
	status.URL = url.String
	status.Text = text.String
	status.Language = language.String
	status.SpoilerText = spoilerText.String
	status.Visibility = domain.Visibility(visibility)
	status.InReplyToURI = inReplyToURI.String
	if inReplyToId.Valid {
		if parsed, err := uuid.Parse(inReplyToId.String); err == nil {
			status.InReplyToId = &parsed
		}
	}
	if conversationId.Valid {
		if parsed, err := uuid.Parse(conversationId.String); err == nil {
			status.ConversationId = &parsed
		}
	}
	if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
		status.CreatedAt = parsedTime
	}
	return nil, &status
}

func uuidPtrToAny(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// Custom emojis

func (db *DB) ReadCustomEmoji(shortcode string, emojiDomain string) (error, *domain.CustomEmoji) {
	row := db.db.QueryRow(sqlSelectCustomEmoji, shortcode, emojiDomain)
	var emoji domain.CustomEmoji
	var idStr string
	var imagePath, uri sql.NullString
	var updatedAtStr, createdAtStr string
	err := row.Scan(&idStr, &emoji.Shortcode, &emoji.Domain, &emoji.ImageRemoteURL, &imagePath, &uri, &updatedAtStr, &createdAtStr)
	if err != nil {
		return err, nil
	}
	if emoji.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	emoji.ImagePath = imagePath.String
	emoji.URI = uri.String
	if parsedTime, err := parseTimestamp(updatedAtStr); err == nil {
		emoji.UpdatedAt = parsedTime
	}
	if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
		emoji.CreatedAt = parsedTime
	}
	return nil, &emoji
}

func (db *DB) UpdateCustomEmojiImage(id uuid.UUID, imagePath string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateEmojiImage, imagePath, id.String())
		return err
	})
}

// Media attachments queries
const (
	sqlInsertMediaAttachment      = `INSERT INTO media_attachments(id, account_id, status_id, remote_url, description, file_path, file_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateMediaAttachmentFile  = `UPDATE media_attachments SET file_path = ?, file_type = ? WHERE id = ?`
	sqlSelectMediaAttachmentsById = `SELECT id, account_id, status_id, remote_url, description, file_path, file_type, created_at FROM media_attachments WHERE status_id = ? ORDER BY created_at ASC`
)

func (db *DB) CreateMediaAttachment(att *domain.MediaAttachment) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertMediaAttachment,
			att.Id.String(),
			att.AccountId.String(),
			uuidPtrToAny(att.StatusId),
			att.RemoteURL,
			att.Description,
			att.FilePath,
			att.FileType,
			att.CreatedAt,
		)
		return err
	})
}

func (db *DB) UpdateMediaAttachmentFile(id uuid.UUID, filePath string, fileType string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateMediaAttachmentFile, filePath, fileType, id.String())
		return err
	})
}

func (db *DB) ReadMediaAttachmentsByStatusId(statusId uuid.UUID) (error, *[]domain.MediaAttachment) {
	rows, err := db.db.Query(sqlSelectMediaAttachmentsById, statusId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var attachments []domain.MediaAttachment
	for rows.Next() {
		var att domain.MediaAttachment
		var idStr, accountIdStr, createdAtStr string
		var statusIdStr, description, filePath, fileType sql.NullString
		if err := rows.Scan(&idStr, &accountIdStr, &statusIdStr, &att.RemoteURL, &description, &filePath, &fileType, &createdAtStr); err != nil {
			return err, &attachments
		}
		if att.Id, err = uuid.Parse(idStr); err != nil {
			return err, &attachments
		}
		if att.AccountId, err = uuid.Parse(accountIdStr); err != nil {
			return err, &attachments
		}
		if statusIdStr.Valid {
			if parsed, err := uuid.Parse(statusIdStr.String); err == nil {
				att.StatusId = &parsed
			}
		}
		att.Description = description.String
		att.FilePath = filePath.String
		att.FileType = fileType.String
		if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
			att.CreatedAt = parsedTime
		}
		attachments = append(attachments, att)
	}
	if err = rows.Err(); err != nil {
		return err, &attachments
	}
	return nil, &attachments
}

// Conversations queries
const (
	sqlInsertConversation      = `INSERT INTO conversations(id, uri, created_at) VALUES (?, ?, ?) ON CONFLICT(uri) DO NOTHING`
	sqlSelectConversationById  = `SELECT id, uri, created_at FROM conversations WHERE id = ?`
	sqlSelectConversationByURI = `SELECT id, uri, created_at FROM conversations WHERE uri = ?`
)

func (db *DB) ReadConversationById(id uuid.UUID) (error, *domain.Conversation) {
	return scanConversation(db.db.QueryRow(sqlSelectConversationById, id.String()))
}

// GetOrCreateConversationByURI returns the conversation for a remote
// conversation URI, creating it on first sight. Concurrent callers converge
// on a single row via the UNIQUE constraint.
func (db *DB) GetOrCreateConversationByURI(uri string) (error, *domain.Conversation) {
	err, conv := scanConversation(db.db.QueryRow(sqlSelectConversationByURI, uri))
	if err == nil {
		return nil, conv
	}
	if err != sql.ErrNoRows {
		return err, nil
	}

	err = db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertConversation, uuid.New().String(), uri, time.Now())
		return err
	})
	if err != nil {
		return err, nil
	}
	return scanConversation(db.db.QueryRow(sqlSelectConversationByURI, uri))
}

func scanConversation(row *sql.Row) (error, *domain.Conversation) {
	var conv domain.Conversation
	var idStr, createdAtStr string
	var uri sql.NullString
	err := row.Scan(&idStr, &uri, &createdAtStr)
	if err != nil {
		return err, nil
	}
	if conv.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	conv.URI = uri.String
	if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
		conv.CreatedAt = parsedTime
	}
	return nil, &conv
}
