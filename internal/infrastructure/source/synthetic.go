package source

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"auto_update_reviews/internal/domain"
)

// PopularMovies seeds synthetic review titles.
var PopularMovies = []string{
	"Deadpool & Wolverine",
	"Inside Out 2",
	"Dune: Part Two",
	"Kingdom of the Planet of the Apes",
	"Bad Boys: Ride or Die",
	"Wicked",
	"Gladiator II",
	"Sonic the Hedgehog 3",
	"Mufasa: The Lion King",
	"Avatar: Fire and Ash",
	"The Batman Part II",
	"Spider-Man: Beyond the Spider-Verse",
	"Fantastic Four",
	"Blade",
	"Thunderbolts",
}

type titleTemplate struct {
	title string // %[1]s = movie, %[2]d = episode
	blurb string
}

var titleTemplates = []titleTemplate{
	{"Review %[1]s - Phim hành động đỉnh cao", "Những pha hành động mãn nhãn cùng nhịp phim dồn dập"},
	{"Đánh giá %[1]s - Phim kinh dị Mỹ hay nhất", "Bầu không khí rùng rợn và những cú hù dọa được dàn dựng khéo léo"},
	{"Phân tích %[1]s - Siêu phẩm khoa học viễn tưởng", "Thế giới tương lai với công nghệ và giả thuyết khoa học táo bạo"},
	{"Review %[1]s - Phim tình cảm Hàn Quốc cảm động", "Chuyện tình nhẹ nhàng khiến khán giả rơi nước mắt"},
	{"Nhận xét %[1]s - Anime Nhật Bản xuất sắc", "Nét vẽ tinh tế, âm nhạc sâu lắng và thông điệp nhân văn"},
	{"%[1]s Review - Phim hài Hollywood vui nhộn", "Tiếng cười sảng khoái từ dàn diễn viên duyên dáng"},
	{"Đánh giá chi tiết %[1]s - Phim bộ Trung Quốc", "Mưu kế cung đình và những màn đối đầu kịch tính"},
	{"Review %[1]s Tập %[2]d - Series đáng xem", "Diễn biến mới nhất và giả thuyết cho tập tiếp theo"},
	{"Phân tích %[1]s - Phim Việt Nam ý nghĩa", "Góc nhìn về văn hóa, con người và xã hội Việt Nam"},
	{"%[1]s - Review phim Marvel siêu anh hùng", "Vũ trụ điện ảnh Marvel, easter egg và cảnh after-credit"},
}

type channelProfile struct {
	id    string
	style string
}

var channelProfiles = map[string]channelProfile{
	"Chơi Phim Review":             {"UC_ChoiPhimReview", "Entertainment-focused movie analysis with humor"},
	"NiNi Mê Phim":                 {"UC_NiNiMePhim", "Deep emotional and storytelling analysis"},
	"Mèo Mê Phim":                  {"UC_MeoMePhim", "Cute and accessible movie reviews"},
	"PIKACHU Review Phim":          {"UC_PikachuReview", "Energetic and detailed movie breakdowns"},
	"Ớt Review Phim":               {"UC_OtReview", "Spicy hot takes and critical analysis"},
	"All In One Movie":             {"UC_AllInOneMovie", "Comprehensive movie coverage and reviews"},
	"FC Review":                    {"UC_FCReview", "Fan-focused community reviews"},
	"Vus Review":                   {"UC_VusReview", "High-quality movie reviews and analysis"},
	"Vus Review phim":              {"UC_VusReviewPhim", "Comprehensive movie reviews by Vus"},
	"Chú Cuội Review Phim":         {"UC_ChuCuoiReview", "Humorous and detailed analysis"},
	"Review phim Nguyễn Review 2":  {"UC_NguyenReview2", "Deep storytelling focus"},
	"Review phim Cuồng Phim Hay":   {"UC_CuongPhimHay", "Entertainment value emphasis"},
	"Review phim Chén Phim Review": {"UC_ChenPhimReview", "Critical analysis"},
	"Review phim Động Phim Review": {"UC_DongPhimReview", "Technical aspects focus"},
}

var defaultProfile = channelProfile{"UC_VietnameseReviewer", "General movie review"}

// SyntheticGenerator fabricates plausible review candidates when the platform API is unusable.
// Output is deterministic for a query apart from the identity keys, which never repeat.
type SyntheticGenerator struct {
	mu  sync.Mutex
	seq int
	now func() time.Time
}

// NewSyntheticGenerator creates a generator on the wall clock.
func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{now: time.Now}
}

// Generate returns up to maxResults candidates for query.
func (g *SyntheticGenerator) Generate(query string, maxResults int) []domain.Candidate {
	n := maxResults
	if n <= 0 || n > len(PopularMovies) {
		n = len(PopularMovies)
	}

	profile, ok := channelProfiles[query]
	if !ok {
		profile = defaultProfile
	}
	offset := queryOffset(query)

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()

	candidates := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		movie := PopularMovies[(offset+i)%len(PopularMovies)]
		tmpl := titleTemplates[i%len(titleTemplates)]

		videoID := fmt.Sprintf("VN%d%03d", now.Unix(), g.seq)
		g.seq++

		candidates = append(candidates, domain.Candidate{
			VideoID:      videoID,
			Title:        fmt.Sprintf(tmpl.title, movie, i+1),
			Description:  fmt.Sprintf("Phim %s: %s. %s", movie, tmpl.blurb, profile.style),
			Channel:      query,
			ChannelID:    profile.id,
			Duration:     600 + i*180,
			ViewCount:    int64(15000 + i*5000),
			LikeCount:    int64(800 + i*200),
			PublishedAt:  now.AddDate(0, 0, -(i + 1)),
			SourceURL:    domain.WatchURL(videoID),
			ThumbnailURL: domain.ThumbnailURL(videoID),
			Query:        query,
			Synthetic:    true,
		})
	}
	return candidates
}

func queryOffset(query string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	return int(h.Sum32() % uint32(len(PopularMovies)))
}
