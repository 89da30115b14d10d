package seeders

import (
	"log"
	"tutorlink_go/database"
	"tutorlink_go/models"
	"tutorlink_go/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedUsers()
	SeedCourses()
	SeedBatches()

	log.Println("Database seeding completed successfully!")
}

// SeedUsers seeds the users table with a default superadmin and demo accounts
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	// Hash the default password
	hashedPassword, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			Username: "superadmin",
			Password: hashedPassword,
			Name:     "Super Admin",
			Email:    "superadmin@tutorlink.example",
			Role:     models.RoleSuperAdmin,
			Status:   "active",
		},
		{
			Username: "admin",
			Password: hashedPassword,
			Name:     "Operations Admin",
			Email:    "admin@tutorlink.example",
			Role:     models.RoleAdmin,
			Status:   "active",
		},
		{
			Username: "teacher1",
			Password: hashedPassword,
			Name:     "Priya Sharma",
			Email:    "priya@tutorlink.example",
			Role:     models.RoleTeacher,
			Status:   "active",
		},
		{
			Username: "student1",
			Password: hashedPassword,
			Name:     "Aarav Patel",
			Email:    "aarav@tutorlink.example",
			Role:     models.RoleStudent,
			Status:   "active",
		},
		{
			Username: "student2",
			Password: hashedPassword,
			Name:     "Diya Singh",
			Email:    "diya@tutorlink.example",
			Role:     models.RoleStudent,
			Status:   "active",
		},
	}

	for _, user := range users {
		if err := database.DB.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Username, err)
		}
	}

	log.Println("Users seeded successfully")
}

// SeedCourses seeds demo courses
func SeedCourses() {
	var count int64
	database.DB.Model(&models.Course{}).Count(&count)
	if count > 0 {
		log.Println("Courses already seeded, skipping...")
		return
	}

	courses := []models.Course{
		{
			Name:    "Mathematics Foundation",
			Code:    "MATH-F",
			Subject: "Mathematics",
			Class:   "8",
			Active:  true,
		},
		{
			Name:    "Science Advanced",
			Code:    "SCI-A",
			Subject: "Science",
			Class:   "10",
			Active:  true,
		},
	}

	for _, course := range courses {
		if err := database.DB.Create(&course).Error; err != nil {
			log.Printf("Error seeding course %s: %v", course.Code, err)
		}
	}

	log.Println("Courses seeded successfully")
}

// SeedBatches seeds a demo batch with enrollments for the demo students
func SeedBatches() {
	var count int64
	database.DB.Model(&models.Batch{}).Count(&count)
	if count > 0 {
		log.Println("Batches already seeded, skipping...")
		return
	}

	var teacher models.User
	if err := database.DB.Where("username = ?", "teacher1").First(&teacher).Error; err != nil {
		log.Printf("Error loading demo teacher, skipping batch seed: %v", err)
		return
	}
	var course models.Course
	if err := database.DB.Where("code = ?", "MATH-F").First(&course).Error; err != nil {
		log.Printf("Error loading demo course, skipping batch seed: %v", err)
		return
	}

	batch := models.Batch{
		Name:      "Math Morning Batch",
		CourseID:  course.ID,
		TeacherID: teacher.ID,
		Timezone:  "Asia/Kolkata",
		Active:    true,
	}
	if err := database.DB.Create(&batch).Error; err != nil {
		log.Printf("Error seeding batch: %v", err)
		return
	}

	var students []models.User
	if err := database.DB.Where("role = ?", models.RoleStudent).Find(&students).Error; err != nil {
		log.Printf("Error loading demo students: %v", err)
		return
	}
	for _, s := range students {
		enrollment := models.BatchStudent{BatchID: batch.ID, StudentID: s.ID, Status: "active"}
		if err := database.DB.Create(&enrollment).Error; err != nil {
			log.Printf("Error enrolling student %d: %v", s.ID, err)
		}
	}

	log.Println("Batches seeded successfully")
}
