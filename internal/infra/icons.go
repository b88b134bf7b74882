package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// IconCache downloads and caches the traded asset's icon for UI
// collaborators. Rendering itself is out of scope here; this only prepares
// the asset on disk.
type IconCache struct {
	basePath string
	client   *http.Client
}

// NewIconCache creates a new IconCache
func NewIconCache() (*IconCache, error) {
	path, err := getAssetsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assets path: %w", err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	// Bound the transport so a slow CDN cannot leak connections
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconCache{
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// Fetch downloads the icon for an asset symbol if it is not cached yet and
// returns the local file path. Images are resized to 24x24 pixels for
// consistent display.
func (c *IconCache) Fetch(symbol string) (string, error) {
	// Sanitize symbol to prevent path traversal
	safeSymbol := sanitizeSymbol(symbol)
	if safeSymbol == "" {
		return "", fmt.Errorf("invalid symbol: %s", symbol)
	}

	fileName := strings.ToLower(safeSymbol) + ".png"
	filePath := filepath.Join(c.basePath, fileName)

	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // cache hit
	}

	url := fmt.Sprintf("https://assets.coincap.io/assets/icons/%s@2x.png", strings.ToLower(safeSymbol))

	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	resizedImg := imaging.Resize(srcImg, 24, 24, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// IconPath returns the local path for a symbol's icon
func (c *IconCache) IconPath(symbol string) string {
	return filepath.Join(c.basePath, strings.ToLower(sanitizeSymbol(symbol))+".png")
}

func getAssetsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TradeSim", "assets", "icons"), nil
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
