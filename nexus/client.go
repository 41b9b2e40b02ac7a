package nexus

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nexus-mod-manager/config"
)

const (
	nexusAPIURL    = "https://api.nexusmods.com"
	defaultTimeout = 5 * time.Second
)

// Client handles communication with the Nexus Mods v1 API.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a Nexus API client using the provided configuration.
// A missing API key is allowed here; endpoints that require one refuse
// at call time.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		// Should be handled by LoadConfig default, but double-check
		return nil, fmt.Errorf("USERAGENT is not configured")
	}

	baseURL := cfg.NexusBaseURL
	if baseURL == "" {
		baseURL = nexusAPIURL
	}

	return &Client{
		BaseURL:   baseURL,
		APIKey:    cfg.NexusAPIKey,
		UserAgent: cfg.UserAgent,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

// makeRequest performs one API call and decodes the JSON response into
// target when given. The apikey header is attached whenever a key is
// configured; requiresAuth additionally refuses to call out without
// one.
func (c *Client) makeRequest(method, path string, queryParams, form url.Values, target interface{}, requiresAuth bool) error {
	if requiresAuth && c.APIKey == "" {
		return fmt.Errorf("authentication required, but NEXUS_API_KEY is not set")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if queryParams != nil {
		req.URL.RawQuery = queryParams.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode json response: %w", err)
		}
	}
	return nil
}

// ValidateAPIKey checks the configured key against the API and returns
// the account it belongs to.
func (c *Client) ValidateAPIKey() (*User, error) {
	var user User
	if err := c.makeRequest("GET", "/v1/users/validate.json", nil, nil, &user, true); err != nil {
		return nil, fmt.Errorf("failed to validate api key: %w", err)
	}
	return &user, nil
}

// GetGames retrieves every game the API knows about.
func (c *Client) GetGames() ([]GameInfo, error) {
	var games []GameInfo
	if err := c.makeRequest("GET", "/v1/games.json", nil, nil, &games, false); err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}
	return games, nil
}

// GetGame retrieves one game by its domain name, e.g. "skyrimspecialedition".
func (c *Client) GetGame(domain string) (*GameInfo, error) {
	var game GameInfo
	path := fmt.Sprintf("/v1/games/%s.json", domain)
	if err := c.makeRequest("GET", path, nil, nil, &game, false); err != nil {
		return nil, fmt.Errorf("failed to get game '%s': %w", domain, err)
	}
	return &game, nil
}

// GetMod retrieves one mod of a game.
func (c *Client) GetMod(domain string, modID int) (*ModInfo, error) {
	var mod ModInfo
	path := fmt.Sprintf("/v1/games/%s/mods/%d.json", domain, modID)
	if err := c.makeRequest("GET", path, nil, nil, &mod, false); err != nil {
		return nil, fmt.Errorf("failed to get mod %d of '%s': %w", modID, domain, err)
	}
	return &mod, nil
}

// GetModFiles retrieves the file list of a mod, including the update
// chain the site tracks between file versions.
func (c *Client) GetModFiles(domain string, modID int) (*ModFiles, error) {
	var files ModFiles
	path := fmt.Sprintf("/v1/games/%s/mods/%d/files.json", domain, modID)
	if err := c.makeRequest("GET", path, nil, nil, &files, false); err != nil {
		return nil, fmt.Errorf("failed to get files of mod %d: %w", modID, err)
	}
	return &files, nil
}

// GetModFile retrieves one file record of a mod.
func (c *Client) GetModFile(domain string, modID, fileID int) (*ModFile, error) {
	var file ModFile
	path := fmt.Sprintf("/v1/games/%s/mods/%d/files/%d.json", domain, modID, fileID)
	if err := c.makeRequest("GET", path, nil, nil, &file, false); err != nil {
		return nil, fmt.Errorf("failed to get file %d of mod %d: %w", fileID, modID, err)
	}
	return &file, nil
}

// GetDownloadLinks generates download links for a file. Non-premium
// accounts only get links for files they requested on the site.
func (c *Client) GetDownloadLinks(domain string, modID, fileID int) ([]DownloadLink, error) {
	var links []DownloadLink
	path := fmt.Sprintf("/v1/games/%s/mods/%d/files/%d/download_link.json", domain, modID, fileID)
	if err := c.makeRequest("GET", path, nil, nil, &links, true); err != nil {
		return nil, fmt.Errorf("failed to get download links for file %d: %w", fileID, err)
	}
	return links, nil
}

// GetLatestAddedMods retrieves the ten newest mods of a game.
func (c *Client) GetLatestAddedMods(domain string) ([]ModInfo, error) {
	return c.modList(domain, "latest_added")
}

// GetLatestUpdatedMods retrieves the ten most recently updated mods of
// a game.
func (c *Client) GetLatestUpdatedMods(domain string) ([]ModInfo, error) {
	return c.modList(domain, "latest_updated")
}

// GetTrendingMods retrieves the ten currently trending mods of a game.
func (c *Client) GetTrendingMods(domain string) ([]ModInfo, error) {
	return c.modList(domain, "trending")
}

func (c *Client) modList(domain, kind string) ([]ModInfo, error) {
	var mods []ModInfo
	path := fmt.Sprintf("/v1/games/%s/mods/%s.json", domain, kind)
	if err := c.makeRequest("GET", path, nil, nil, &mods, false); err != nil {
		return nil, fmt.Errorf("failed to get %s mods of '%s': %w", kind, domain, err)
	}
	return mods, nil
}

// MD5Search looks up mod files by the MD5 hash of their archive, which
// identifies a local download without any metadata.
func (c *Client) MD5Search(domain, md5 string) ([]MD5Result, error) {
	var results []MD5Result
	path := fmt.Sprintf("/v1/games/%s/mods/md5_search/%s.json", domain, strings.ToLower(md5))
	if err := c.makeRequest("GET", path, nil, nil, &results, false); err != nil {
		return nil, fmt.Errorf("failed to search by md5: %w", err)
	}
	return results, nil
}

// GetModChangelogs retrieves a mod's changelogs keyed by version.
func (c *Client) GetModChangelogs(domain string, modID int) (map[string][]string, error) {
	changelogs := map[string][]string{}
	path := fmt.Sprintf("/v1/games/%s/mods/%d/changelogs.json", domain, modID)
	if err := c.makeRequest("GET", path, nil, nil, &changelogs, false); err != nil {
		return nil, fmt.Errorf("failed to get changelogs of mod %d: %w", modID, err)
	}
	return changelogs, nil
}

// GetTrackedMods retrieves the mods tracked by the account.
func (c *Client) GetTrackedMods() ([]TrackedMod, error) {
	var tracked []TrackedMod
	if err := c.makeRequest("GET", "/v1/user/tracked_mods.json", nil, nil, &tracked, true); err != nil {
		return nil, fmt.Errorf("failed to get tracked mods: %w", err)
	}
	return tracked, nil
}

// TrackMod adds a mod to the account's tracking list. Tracking an
// already tracked mod is not an error.
func (c *Client) TrackMod(domain string, modID int) error {
	params := url.Values{"domain_name": {domain}}
	form := url.Values{"mod_id": {strconv.Itoa(modID)}}
	if err := c.makeRequest("POST", "/v1/user/tracked_mods.json", params, form, nil, true); err != nil {
		return fmt.Errorf("failed to track mod %d: %w", modID, err)
	}
	return nil
}

// UntrackMod removes a mod from the account's tracking list.
func (c *Client) UntrackMod(domain string, modID int) error {
	params := url.Values{"domain_name": {domain}}
	form := url.Values{"mod_id": {strconv.Itoa(modID)}}
	if err := c.makeRequest("DELETE", "/v1/user/tracked_mods.json", params, form, nil, true); err != nil {
		return fmt.Errorf("failed to untrack mod %d: %w", modID, err)
	}
	return nil
}

// EndorseMod endorses a mod at the given version.
func (c *Client) EndorseMod(domain string, modID int, version string) error {
	form := url.Values{"version": {version}}
	path := fmt.Sprintf("/v1/games/%s/mods/%d/endorse.json", domain, modID)
	if err := c.makeRequest("POST", path, nil, form, nil, true); err != nil {
		return fmt.Errorf("failed to endorse mod %d: %w", modID, err)
	}
	return nil
}

// AbstainEndorsement withdraws interest in endorsing a mod.
func (c *Client) AbstainEndorsement(domain string, modID int, version string) error {
	form := url.Values{"version": {version}}
	path := fmt.Sprintf("/v1/games/%s/mods/%d/abstain.json", domain, modID)
	if err := c.makeRequest("POST", path, nil, form, nil, true); err != nil {
		return fmt.Errorf("failed to abstain from mod %d: %w", modID, err)
	}
	return nil
}

// --- Structs for API responses ---
// Trimmed to the fields the application reads; the API returns more.

// User is the account a key validates to.
type User struct {
	UserID     int    `json:"user_id"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsPremium  bool   `json:"is_premium"`
	ProfileURL string `json:"profile_url"`
}

// GameInfo represents a game in the Nexus catalog.
type GameInfo struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Genre      string `json:"genre"`
	DomainName string `json:"domain_name"`
	Mods       int    `json:"mods"`
	Downloads  int64  `json:"downloads"`
	FileCount  int64  `json:"file_count"`
}

// ModInfo represents a mod page.
type ModInfo struct {
	ModID            int    `json:"mod_id"`
	GameID           int    `json:"game_id"`
	DomainName       string `json:"domain_name"`
	Name             string `json:"name"`
	Summary          string `json:"summary"`
	Version          string `json:"version"`
	Author           string `json:"author"`
	UploadedBy       string `json:"uploaded_by"`
	Status           string `json:"status"`
	Available        bool   `json:"available"`
	EndorsementCount int    `json:"endorsement_count"`
	PictureURL       string `json:"picture_url"`
	UpdatedTimestamp int64  `json:"updated_timestamp"`
}

// ModFile is one downloadable file of a mod.
type ModFile struct {
	FileID            int    `json:"file_id"`
	Name              string `json:"name"`
	FileName          string `json:"file_name"`
	Version           string `json:"version"`
	ModVersion        string `json:"mod_version"`
	CategoryID        int    `json:"category_id"`
	CategoryName      string `json:"category_name"`
	IsPrimary         bool   `json:"is_primary"`
	SizeKB            int64  `json:"size_kb"`
	UploadedTimestamp int64  `json:"uploaded_timestamp"`
	Description       string `json:"description"`
}

// ModFiles is the file listing of a mod. FileUpdates chains old file
// ids to their replacements, newest last.
type ModFiles struct {
	Files       []ModFile    `json:"files"`
	FileUpdates []FileUpdate `json:"file_updates"`
}

type FileUpdate struct {
	OldFileID         int    `json:"old_file_id"`
	NewFileID         int    `json:"new_file_id"`
	OldFileName       string `json:"old_file_name"`
	NewFileName       string `json:"new_file_name"`
	UploadedTimestamp int64  `json:"uploaded_timestamp"`
}

// DownloadLink is one CDN location for a file.
type DownloadLink struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	URI       string `json:"URI"`
}

// MD5Result pairs a mod with the file that matched a hash lookup.
type MD5Result struct {
	Mod         ModInfo        `json:"mod"`
	FileDetails MD5FileDetails `json:"file_details"`
}

type MD5FileDetails struct {
	FileID   int    `json:"file_id"`
	FileName string `json:"file_name"`
	Version  string `json:"version"`
	MD5      string `json:"md5"`
}

// TrackedMod is one entry of the account's tracking list.
type TrackedMod struct {
	ModID      int    `json:"mod_id"`
	DomainName string `json:"domain_name"`
}
