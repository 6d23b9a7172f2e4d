package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pipwine/pip/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// nullable column helpers

func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Users

func (s *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, oauth_provider, oauth_id, preferences, created_at, updated_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	var displayName sql.NullString
	var prefs []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&displayName,
		&user.OAuthProvider,
		&user.OAuthID,
		&prefs,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	user.DisplayName = displayName.String
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
			return nil, fmt.Errorf("error decoding user preferences: %v", err)
		}
	}
	return user, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	prefs, err := marshalJSON(user.Preferences)
	if err != nil {
		return fmt.Errorf("error encoding user preferences: %v", err)
	}

	query := `
		INSERT INTO users (id, email, display_name, oauth_provider, oauth_id, preferences)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		nullStr(user.DisplayName),
		user.OAuthProvider,
		user.OAuthID,
		prefs,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %v", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting user: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Wines

const wineColumns = `id, name, producer, vintage, wine_type, varietal, country, region, price_usd, wine_metadata`

func scanWine(scanner interface{ Scan(...any) error }) (models.Wine, error) {
	var w models.Wine
	var producer, varietal, country, region sql.NullString
	var vintage sql.NullInt64
	var price sql.NullFloat64
	var meta []byte

	err := scanner.Scan(
		&w.ID, &w.Name, &producer, &vintage, &w.Type,
		&varietal, &country, &region, &price, &meta,
	)
	if err != nil {
		return w, err
	}

	w.Producer = producer.String
	w.Vintage = int(vintage.Int64)
	w.Varietal = varietal.String
	w.Country = country.String
	w.Region = region.String
	w.PriceUSD = price.Float64
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &w.Metadata); err != nil {
			return w, fmt.Errorf("error decoding wine metadata: %v", err)
		}
	}
	return w, nil
}

func (s *PostgresStorage) GetWine(ctx context.Context, id string) (*models.Wine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+wineColumns+` FROM wines WHERE id = $1`, id)
	wine, err := scanWine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying wine: %v", err)
	}
	return &wine, nil
}

func (s *PostgresStorage) ListWines(ctx context.Context) ([]models.Wine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+wineColumns+` FROM wines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error querying wines: %v", err)
	}
	defer rows.Close()

	var wines []models.Wine
	for rows.Next() {
		wine, err := scanWine(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning wine: %v", err)
		}
		wines = append(wines, wine)
	}
	return wines, rows.Err()
}

// Saved bottles

func (s *PostgresStorage) ListSavedBottles(ctx context.Context, userID string) ([]models.SavedBottle, error) {
	query := `
		SELECT id, user_id, wine_id, recommendation_context, notes, saved_at
		FROM saved_bottles
		WHERE user_id = $1
		ORDER BY saved_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying saved bottles: %v", err)
	}
	defer rows.Close()

	var saved []models.SavedBottle
	for rows.Next() {
		var sb models.SavedBottle
		var recCtx, notes sql.NullString
		if err := rows.Scan(&sb.ID, &sb.UserID, &sb.WineID, &recCtx, &notes, &sb.SavedAt); err != nil {
			return nil, fmt.Errorf("error scanning saved bottle: %v", err)
		}
		sb.RecommendationContext = recCtx.String
		sb.Notes = notes.String
		saved = append(saved, sb)
	}
	return saved, rows.Err()
}

func (s *PostgresStorage) CreateSavedBottle(ctx context.Context, saved *models.SavedBottle) error {
	query := `
		INSERT INTO saved_bottles (id, user_id, wine_id, recommendation_context, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING saved_at`

	err := s.db.QueryRowContext(ctx, query,
		saved.ID,
		saved.UserID,
		saved.WineID,
		nullStr(saved.RecommendationContext),
		nullStr(saved.Notes),
	).Scan(&saved.SavedAt)
	if err != nil {
		return fmt.Errorf("error creating saved bottle: %v", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteSavedBottle(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_bottles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting saved bottle: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) MoveSavedToCellar(ctx context.Context, savedID, userID string) (*models.CellarBottle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	var wineID string
	err = tx.QueryRowContext(ctx,
		`SELECT wine_id FROM saved_bottles WHERE id = $1 AND user_id = $2`,
		savedID, userID,
	).Scan(&wineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying saved bottle: %v", err)
	}

	// Already owned: bump quantity on the existing entry instead of
	// creating a duplicate row.
	var bottle models.CellarBottle
	err = tx.QueryRowContext(ctx, `
		UPDATE cellar_bottles
		SET quantity = quantity + 1, updated_at = now()
		WHERE user_id = $1 AND wine_id = $2
		RETURNING id, user_id, wine_id, status, quantity, added_at, updated_at`,
		userID, wineID,
	).Scan(&bottle.ID, &bottle.UserID, &bottle.WineID, &bottle.Status, &bottle.Quantity, &bottle.AddedAt, &bottle.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO cellar_bottles (id, user_id, wine_id, status, quantity)
			VALUES (gen_random_uuid(), $1, $2, 'owned', 1)
			RETURNING id, user_id, wine_id, status, quantity, added_at, updated_at`,
			userID, wineID,
		).Scan(&bottle.ID, &bottle.UserID, &bottle.WineID, &bottle.Status, &bottle.Quantity, &bottle.AddedAt, &bottle.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("error moving saved bottle to cellar: %v", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM saved_bottles WHERE id = $1 AND user_id = $2`, savedID, userID); err != nil {
		return nil, fmt.Errorf("error deleting saved bottle: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %v", err)
	}
	return &bottle, nil
}

// Cellar bottles

const cellarColumns = `id, user_id, wine_id, custom_wine_name, custom_wine_producer,
	custom_wine_vintage, custom_wine_type, custom_wine_varietal, custom_wine_region,
	custom_wine_country, status, quantity, purchase_date, purchase_price,
	purchase_location, rating, tasting_notes, tried_date, added_at, updated_at`

func scanCellarBottle(scanner interface{ Scan(...any) error }) (models.CellarBottle, error) {
	var b models.CellarBottle
	var wineID, cName, cProducer, cType, cVarietal, cRegion, cCountry sql.NullString
	var cVintage sql.NullInt64
	var purchaseDate, triedDate sql.NullTime
	var purchasePrice, rating sql.NullFloat64
	var purchaseLocation, tastingNotes sql.NullString

	err := scanner.Scan(
		&b.ID, &b.UserID, &wineID, &cName, &cProducer,
		&cVintage, &cType, &cVarietal, &cRegion,
		&cCountry, &b.Status, &b.Quantity, &purchaseDate, &purchasePrice,
		&purchaseLocation, &rating, &tastingNotes, &triedDate, &b.AddedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}

	b.WineID = wineID.String
	b.CustomName = cName.String
	b.CustomProducer = cProducer.String
	b.CustomVintage = int(cVintage.Int64)
	b.CustomType = models.WineType(cType.String)
	b.CustomVarietal = cVarietal.String
	b.CustomRegion = cRegion.String
	b.CustomCountry = cCountry.String
	b.PurchaseDate = timePtr(purchaseDate)
	b.PurchasePrice = purchasePrice.Float64
	b.PurchaseLocation = purchaseLocation.String
	b.Rating = rating.Float64
	b.TastingNotes = tastingNotes.String
	b.TriedDate = timePtr(triedDate)
	return b, nil
}

func (s *PostgresStorage) ListCellarBottles(ctx context.Context, userID string) ([]models.CellarBottle, error) {
	query := `SELECT ` + cellarColumns + ` FROM cellar_bottles WHERE user_id = $1 ORDER BY added_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying cellar bottles: %v", err)
	}
	defer rows.Close()

	var bottles []models.CellarBottle
	for rows.Next() {
		bottle, err := scanCellarBottle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning cellar bottle: %v", err)
		}
		bottles = append(bottles, bottle)
	}
	return bottles, rows.Err()
}

func (s *PostgresStorage) GetCellarBottle(ctx context.Context, id, userID string) (*models.CellarBottle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cellarColumns+` FROM cellar_bottles WHERE id = $1 AND user_id = $2`, id, userID)
	bottle, err := scanCellarBottle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying cellar bottle: %v", err)
	}
	return &bottle, nil
}

func (s *PostgresStorage) FindCellarBottleByWine(ctx context.Context, userID, wineID string) (*models.CellarBottle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cellarColumns+` FROM cellar_bottles WHERE user_id = $1 AND wine_id = $2`, userID, wineID)
	bottle, err := scanCellarBottle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying cellar bottle: %v", err)
	}
	return &bottle, nil
}

func (s *PostgresStorage) CreateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error {
	query := `
		INSERT INTO cellar_bottles (
			id, user_id, wine_id, custom_wine_name, custom_wine_producer,
			custom_wine_vintage, custom_wine_type, custom_wine_varietal,
			custom_wine_region, custom_wine_country, status, quantity,
			purchase_date, purchase_price, purchase_location, rating,
			tasting_notes, tried_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING added_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		bottle.ID,
		bottle.UserID,
		nullStr(bottle.WineID),
		nullStr(bottle.CustomName),
		nullStr(bottle.CustomProducer),
		nullInt(bottle.CustomVintage),
		nullStr(string(bottle.CustomType)),
		nullStr(bottle.CustomVarietal),
		nullStr(bottle.CustomRegion),
		nullStr(bottle.CustomCountry),
		bottle.Status,
		bottle.Quantity,
		nullTime(bottle.PurchaseDate),
		nullFloat(bottle.PurchasePrice),
		nullStr(bottle.PurchaseLocation),
		nullFloat(bottle.Rating),
		nullStr(bottle.TastingNotes),
		nullTime(bottle.TriedDate),
	).Scan(&bottle.AddedAt, &bottle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating cellar bottle: %v", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error {
	query := `
		UPDATE cellar_bottles
		SET status = $1, quantity = $2, rating = $3, tasting_notes = $4,
		    tried_date = $5, purchase_price = $6, purchase_location = $7,
		    updated_at = now()
		WHERE id = $8 AND user_id = $9`

	result, err := s.db.ExecContext(ctx, query,
		bottle.Status,
		bottle.Quantity,
		nullFloat(bottle.Rating),
		nullStr(bottle.TastingNotes),
		nullTime(bottle.TriedDate),
		nullFloat(bottle.PurchasePrice),
		nullStr(bottle.PurchaseLocation),
		bottle.ID,
		bottle.UserID,
	)
	if err != nil {
		return fmt.Errorf("error updating cellar bottle: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteCellarBottle(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cellar_bottles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting cellar bottle: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) CountOwnedBottles(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cellar_bottles WHERE user_id = $1 AND status = 'owned' AND quantity > 0`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting owned bottles: %v", err)
	}
	return count, nil
}

// Sessions and messages

func (s *PostgresStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	query := `
		SELECT id, user_id, started_at, last_message_at, context
		FROM chat_sessions
		WHERE id = $1`

	session := &models.ChatSession{}
	var userID sql.NullString
	var contextJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&userID,
		&session.StartedAt,
		&session.LastMessageAt,
		&contextJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %v", err)
	}

	session.UserID = userID.String
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &session.Context); err != nil {
			return nil, fmt.Errorf("error decoding session context: %v", err)
		}
	}
	return session, nil
}

func (s *PostgresStorage) CreateSession(ctx context.Context, session *models.ChatSession) error {
	contextJSON, err := marshalJSON(session.Context)
	if err != nil {
		return fmt.Errorf("error encoding session context: %v", err)
	}

	query := `
		INSERT INTO chat_sessions (id, user_id, context)
		VALUES ($1, $2, $3)
		RETURNING started_at, last_message_at`

	err = s.db.QueryRowContext(ctx, query,
		session.ID,
		nullStr(session.UserID),
		contextJSON,
	).Scan(&session.StartedAt, &session.LastMessageAt)
	if err != nil {
		return fmt.Errorf("error creating session: %v", err)
	}
	return nil
}

func (s *PostgresStorage) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_message_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error touching session: %v", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateSessionContext(ctx context.Context, id string, sessionCtx models.SessionContext) error {
	contextJSON, err := marshalJSON(sessionCtx)
	if err != nil {
		return fmt.Errorf("error encoding session context: %v", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET context = $1 WHERE id = $2`, contextJSON, id)
	if err != nil {
		return fmt.Errorf("error updating session context: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) CountUserSessions(ctx context.Context, userID, excludeSessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE user_id = $1 AND id <> $2`,
		userID, excludeSessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting sessions: %v", err)
	}
	return count, nil
}

func (s *PostgresStorage) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	var metaJSON []byte
	if !message.Metadata.IsEmpty() {
		var err error
		metaJSON, err = marshalJSON(message.Metadata)
		if err != nil {
			return fmt.Errorf("error encoding message metadata: %v", err)
		}
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, message_metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		metaJSON,
	).Scan(&message.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating message: %v", err)
	}
	return nil
}

func (s *PostgresStorage) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, message_metadata, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var metaJSON []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metaJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		if len(metaJSON) > 0 {
			msg.Metadata = &models.MessageMetadata{}
			if err := json.Unmarshal(metaJSON, msg.Metadata); err != nil {
				return nil, fmt.Errorf("error decoding message metadata: %v", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Taste profiles

func (s *PostgresStorage) GetTasteProfile(ctx context.Context, userID string) (*models.UserTasteProfile, error) {
	query := `
		SELECT id, user_id, preferred_types, preferred_regions, preferred_countries,
		       preferred_varietals, price_range_min, price_range_max, flavor_profile,
		       rating_count, average_rating, created_at, updated_at
		FROM user_taste_profiles
		WHERE user_id = $1`

	profile := &models.UserTasteProfile{}
	var types, regions, countries, varietals, flavor []byte
	var priceMin, priceMax, avgRating sql.NullFloat64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&types,
		&regions,
		&countries,
		&varietals,
		&priceMin,
		&priceMax,
		&flavor,
		&profile.RatingCount,
		&avgRating,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying taste profile: %v", err)
	}

	profile.PriceRangeMin = priceMin.Float64
	profile.PriceRangeMax = priceMax.Float64
	profile.AverageRating = avgRating.Float64

	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{types, &profile.PreferredTypes},
		{regions, &profile.PreferredRegions},
		{countries, &profile.PreferredCountries},
		{varietals, &profile.PreferredVarietals},
		{flavor, &profile.FlavorProfile},
	} {
		if len(col.raw) > 0 {
			if err := json.Unmarshal(col.raw, col.dst); err != nil {
				return nil, fmt.Errorf("error decoding taste profile: %v", err)
			}
		}
	}
	return profile, nil
}

func (s *PostgresStorage) UpsertTasteProfile(ctx context.Context, profile *models.UserTasteProfile) error {
	types, err := marshalJSON(profile.PreferredTypes)
	if err != nil {
		return fmt.Errorf("error encoding taste profile: %v", err)
	}
	regions, _ := marshalJSON(profile.PreferredRegions)
	countries, _ := marshalJSON(profile.PreferredCountries)
	varietals, _ := marshalJSON(profile.PreferredVarietals)
	flavor, _ := marshalJSON(profile.FlavorProfile)

	query := `
		INSERT INTO user_taste_profiles (
			id, user_id, preferred_types, preferred_regions, preferred_countries,
			preferred_varietals, price_range_min, price_range_max, flavor_profile,
			rating_count, average_rating
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_types = EXCLUDED.preferred_types,
			preferred_regions = EXCLUDED.preferred_regions,
			preferred_countries = EXCLUDED.preferred_countries,
			preferred_varietals = EXCLUDED.preferred_varietals,
			price_range_min = EXCLUDED.price_range_min,
			price_range_max = EXCLUDED.price_range_max,
			flavor_profile = EXCLUDED.flavor_profile,
			rating_count = EXCLUDED.rating_count,
			average_rating = EXCLUDED.average_rating,
			updated_at = now()`

	_, err = s.db.ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		types,
		regions,
		countries,
		varietals,
		nullFloat(profile.PriceRangeMin),
		nullFloat(profile.PriceRangeMax),
		flavor,
		profile.RatingCount,
		nullFloat(profile.AverageRating),
	)
	if err != nil {
		return fmt.Errorf("error upserting taste profile: %v", err)
	}
	return nil
}
