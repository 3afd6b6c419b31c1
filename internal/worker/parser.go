package worker

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// 每个文件的读取上限与下限
const (
	maxFileSizeBytes = 1 << 20 // 1 MiB
	minFileSizeBytes = 10
	maxSourceFiles   = 150
	// 拼接后送给模型的总字节上限，超出部分直接截断
	maxTotalBytes = 4 << 20
)

var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".rst": true, ".log": true, ".cfg": true,
	".ini": true, ".toml": true, ".yaml": true, ".yml": true, ".json": true,
	".xml": true, ".html": true, ".css": true, ".js": true, ".py": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".cs": true, ".go": true, ".php": true, ".rb": true, ".swift": true,
	".kt": true, ".scala": true, ".sh": true, ".ps1": true, ".bat": true,
	".sql": true, ".ts": true,
}

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".html": true, ".css": true, ".scss": true, ".php": true, ".rb": true,
	".erb": true, ".java": true, ".scala": true, ".kt": true, ".cpp": true,
	".c": true, ".h": true, ".hpp": true, ".cs": true, ".go": true,
	".rs": true, ".swift": true, ".sh": true, ".bash": true, ".ps1": true,
	".pl": true, ".lua": true, ".r": true, ".dart": true, ".sql": true,
	".m": true, ".mm": true, ".ino": true, ".vb": true, ".fs": true,
	".groovy": true, ".perl": true, ".pas": true,
}

// importantFiles 按类别收集的关键文件名，小写比较
var importantFiles = map[string]string{}

func init() {
	categories := map[string][]string{
		"readme":       {"README.md", "README.rst", "README.txt", "README", "readme.md"},
		"contributing": {"CONTRIBUTING.md", "CONTRIBUTING.rst"},
		"license":      {"LICENSE", "LICENSE.md", "COPYING", "license.txt"},
		"setup": {
			"setup.py", "requirements.txt", "Pipfile", "pyproject.toml", "environment.yml",
			"package.json", "yarn.lock", "pnpm-lock.yaml", "webpack.config.js", "babel.config.js",
			"Gemfile", "Gemfile.lock", "composer.json", "pom.xml", "build.gradle", "settings.gradle",
			"go.mod", "go.sum", "Cargo.toml", "Cargo.lock", "Makefile", "CMakeLists.txt",
			"Dockerfile", "docker-compose.yml", "Jenkinsfile", ".travis.yml", ".gitlab-ci.yml",
		},
		"configuration": {".env.example", "config.example.json", "settings.py", "appsettings.json", "web.config"},
		"architecture":  {"ARCHITECTURE.md", "DESIGN.md"},
	}
	for category, names := range categories {
		for _, name := range names {
			importantFiles[strings.ToLower(name)] = category
		}
	}
}

var ignoreDirs = map[string]bool{
	".git": true, ".vscode": true, ".idea": true, "node_modules": true,
	"__pycache__": true, "build": true, "dist": true, "target": true,
	"vendor": true, ".pytest_cache": true, "venv": true, "env": true,
	"docs": true, "examples": true, "tests": true, "test": true, "samples": true,
}

var ignoreFiles = map[string]bool{
	".gitignore": true, ".gitattributes": true, ".env": true, ".DS_Store": true,
	".project": true, ".classpath": true, ".settings": true,
}

var ignoreExtensions = map[string]bool{
	".lock": true, ".svg": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".ico": true, ".map": true, ".woff": true, ".woff2": true,
	".ttf": true, ".eot": true, ".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".zip": true,
	".gz": true, ".rar": true, ".exe": true, ".dll": true, ".so": true,
	".o": true, ".class": true, ".jar": true, ".pyc": true, ".webm": true,
	".mp4": true, ".mp3": true, ".wav": true, ".obj": true, ".bin": true,
	".dat": true, ".iso": true, ".img": true,
}

type sourceFile struct {
	Path    string
	Content string
}

// parsedRepo 仓库解析结果：关键文件优先，源码文件按遍历顺序截断
type parsedRepo struct {
	Important   map[string]string
	SourceFiles []sourceFile
}

// ParseRepo 遍历仓库目录并抽取可读文本。跳过忽略目录、二进制文件、
// 过大或过小的文件，源码文件数量有上限。
func ParseRepo(repoPath string) (*parsedRepo, error) {
	result := &parsedRepo{
		Important: make(map[string]string),
	}

	err := filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 单个文件读失败不中断整个解析
		}

		name := info.Name()
		if info.IsDir() {
			if path != repoPath && (ignoreDirs[strings.ToLower(name)] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignoreFiles[strings.ToLower(name)] || strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if ignoreExtensions[ext] {
			return nil
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return nil
		}

		// 不在已知文本/代码扩展名里的文件做一次二进制嗅探
		if !textExtensions[ext] && !codeExtensions[ext] {
			if isLikelyBinary(path) {
				return nil
			}
		}

		content, ok := readFileContent(path, info.Size())
		if !ok {
			return nil
		}

		if _, isImportant := importantFiles[strings.ToLower(name)]; isImportant {
			if _, exists := result.Important[relPath]; !exists {
				result.Important[relPath] = content
			}
			return nil
		}

		if codeExtensions[ext] && len(result.SourceFiles) < maxSourceFiles {
			result.SourceFiles = append(result.SourceFiles, sourceFile{
				Path:    relPath,
				Content: content,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository: %w", err)
	}

	log.Printf("Parsed repository %s: %d important files, %d source files",
		repoPath, len(result.Important), len(result.SourceFiles))

	return result, nil
}

// BuildAnalysisText 把解析结果拼成送给模型的单段文本，关键文件在前。
// 超过总字节上限即停止追加。
func (p *parsedRepo) BuildAnalysisText() string {
	var buf bytes.Buffer

	importantPaths := make([]string, 0, len(p.Important))
	for path := range p.Important {
		importantPaths = append(importantPaths, path)
	}
	sort.Strings(importantPaths)

	for _, path := range importantPaths {
		if !appendFileSection(&buf, path, p.Important[path]) {
			return buf.String()
		}
	}

	for _, sf := range p.SourceFiles {
		if !appendFileSection(&buf, sf.Path, sf.Content) {
			return buf.String()
		}
	}

	return buf.String()
}

func appendFileSection(buf *bytes.Buffer, path, content string) bool {
	section := fmt.Sprintf("--- File: %s ---\n%s\n\n", path, content)
	if buf.Len()+len(section) > maxTotalBytes {
		remaining := maxTotalBytes - buf.Len()
		if remaining > 0 {
			buf.WriteString(section[:remaining])
		}
		return false
	}
	buf.WriteString(section)
	return true
}

func readFileContent(path string, size int64) (string, bool) {
	if size > maxFileSizeBytes || size < minFileSizeBytes {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Failed to read file %s: %v", path, err)
		return "", false
	}
	return string(data), true
}

// isLikelyBinary 前 1KB 出现 NUL 字节即视为二进制
func isLikelyBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	chunk := make([]byte, 1024)
	n, err := f.Read(chunk)
	if err != nil && n == 0 {
		return false
	}
	return bytes.IndexByte(chunk[:n], 0) >= 0
}
